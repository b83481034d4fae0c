// Package scraper fetches the INSEAD events listing and its Drupal AJAX pages
// and extracts event cards from them.
//
// The listing page is fetched once, either over plain HTTP or rendered in a
// headless browser, and yields the first batch of events plus the view DOM id
// token. Every later page is requested from the Drupal views AJAX endpoint
// with that token and answers with a JSON list of commands whose data members
// carry HTML fragments. Both kinds of markup go through the same Extractor.
package scraper
