package api

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"

	"github.com/JakeFAU/seo-crawler/internal/config"
	memstore "github.com/JakeFAU/seo-crawler/internal/storage/memory"
)

func ExampleServer_Handler() {
	cfg, err := config.Load("")
	if err != nil {
		panic(err)
	}
	jobs := &fakeJobs{repo: memstore.NewJobStore()}
	server := NewServer(jobs, jobs.repo, cfg, Options{})

	body := bytes.NewBufferString(`{"urls":["https://example.com"],"maxDepth":1}`)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/crawls", body))
	fmt.Println(rec.Code, jobs.last().MaxDepth)

	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/crawls/job-1", nil))
	fmt.Println(rec.Code)
	// Output:
	// 202 1
	// 200
}
