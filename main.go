// Command seo-crawler runs the crawl service or a one-shot crawl.
package main

import "github.com/JakeFAU/seo-crawler/cmd"

func main() {
	cmd.Execute()
}
