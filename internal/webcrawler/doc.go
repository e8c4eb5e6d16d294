// Package webcrawler implements the web_crawler tool service. The crawl_page
// tool fetches a page with browser-like headers, enforces a content size
// limit, and extracts text or cleaned HTML plus optional metadata, links, and
// images.
package webcrawler
