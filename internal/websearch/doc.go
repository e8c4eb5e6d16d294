// Package websearch implements the web_search tool service on the Serper
// Google search API. The single web_search tool covers five search types
// (search, images, news, shopping, places), each with its own result
// formatting.
package websearch
