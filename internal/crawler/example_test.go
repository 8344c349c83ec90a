package crawler_test

import (
	"context"
	"fmt"
	"net/http"

	"github.com/JakeFAU/seo-crawler/internal/crawler"
)

type siteFetcher map[string]string

func (s siteFetcher) Fetch(_ context.Context, req crawler.FetchRequest) (crawler.FetchResponse, error) {
	body, ok := s[req.URL]
	status := http.StatusOK
	if !ok {
		status = http.StatusNotFound
	}
	return crawler.FetchResponse{
		URL:        req.URL,
		StatusCode: status,
		Headers:    http.Header{"Content-Type": {"text/html"}},
		Body:       []byte(body),
	}, nil
}

func ExampleEngine_Crawl() {
	respect := false
	engine, err := crawler.NewEngine(crawler.EngineConfig{
		Fetcher: siteFetcher{
			"https://example.com/":      `<title>Home</title><a href="/about">About</a><a href="/missing">?</a>`,
			"https://example.com/about": `<title>About</title>`,
		},
		BatchPause: -1,
	})
	if err != nil {
		panic(err)
	}

	result, err := engine.Crawl(context.Background(), crawler.CrawlJob{
		URLs:          []string{"https://example.com"},
		MaxDepth:      1,
		MaxPages:      10,
		Retries:       1,
		RespectRobots: &respect,
	})
	if err != nil {
		panic(err)
	}
	fmt.Println(result.Status, len(result.Pages), len(result.Errors))
	// Output: succeeded 2 1
}
