// Package seo computes the on-page SEO audit for a fetched HTML document.
//
// Analyze is a pure function: identical HTML, URL and Options always yield an
// identical Audit.
package seo

// Title and description length thresholds, in characters.
const (
	TitleMaxLength       = 60
	TitleMinLength       = 30
	DescriptionMaxLength = 160
	DescriptionMinLength = 120
)

// Audit is the derived set of on-page signals and scores for one page.
type Audit struct {
	Title         string `json:"title"`
	TitleLength   int    `json:"titleLength"`
	HasTitle      bool   `json:"hasTitle"`
	TitleTooLong  bool   `json:"titleTooLong"`
	TitleTooShort bool   `json:"titleTooShort"`

	MetaDescription         string `json:"metaDescription"`
	MetaDescriptionLength   int    `json:"metaDescriptionLength"`
	HasMetaDescription      bool   `json:"hasMetaDescription"`
	MetaDescriptionTooLong  bool   `json:"metaDescriptionTooLong"`
	MetaDescriptionTooShort bool   `json:"metaDescriptionTooShort"`

	H1Count       int  `json:"h1Count"`
	H2Count       int  `json:"h2Count"`
	H3Count       int  `json:"h3Count"`
	H4Count       int  `json:"h4Count"`
	H5Count       int  `json:"h5Count"`
	H6Count       int  `json:"h6Count"`
	MissingH1     bool `json:"missingH1"`
	HasMultipleH1 bool `json:"hasMultipleH1"`

	CanonicalURL    string `json:"canonicalUrl,omitempty"`
	HasCanonical    bool   `json:"hasCanonical"`
	CanonicalIsSelf bool   `json:"canonicalIsSelf"`
	RobotsMeta      string `json:"robotsMeta,omitempty"`
	IsIndexable     bool   `json:"isIndexable"`
	IsFollowable    bool   `json:"isFollowable"`

	HasStructuredData bool     `json:"hasStructuredData"`
	JSONLDCount       int      `json:"jsonLdCount"`
	MicrodataCount    int      `json:"microdataCount"`
	RDFaCount         int      `json:"rdfaCount"`
	SchemaTypes       []string `json:"schemaTypes"`

	TotalImages      int `json:"totalImages"`
	ImagesWithoutAlt int `json:"imagesWithoutAlt"`

	TotalLinks       int `json:"totalLinks"`
	InternalLinks    int `json:"internalLinks"`
	ExternalLinks    int `json:"externalLinks"`
	NofollowLinks    int `json:"nofollowLinks"`
	LinksWithoutText int `json:"linksWithoutText"`

	HasOpenGraph   bool   `json:"hasOpenGraph"`
	OGTitle        string `json:"ogTitle,omitempty"`
	OGDescription  string `json:"ogDescription,omitempty"`
	OGImage        string `json:"ogImage,omitempty"`
	HasTwitterCard bool   `json:"hasTwitterCard"`
	TwitterCard    string `json:"twitterCard,omitempty"`

	HasViewport bool   `json:"hasViewport"`
	HasCharset  bool   `json:"hasCharset"`
	IsHTTPS     bool   `json:"isHttps"`
	HasLang     bool   `json:"hasLang"`
	Lang        string `json:"lang,omitempty"`
	WordCount   int    `json:"wordCount"`

	PageSize   int   `json:"pageSize"`
	LoadTimeMs int64 `json:"loadTimeMs"`

	PerformanceScore   int `json:"performanceScore"`
	SEOScore           int `json:"seoScore"`
	AccessibilityScore int `json:"accessibilityScore"`
}
