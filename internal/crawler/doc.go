// Package crawler defines the domain types shared by the hn-crawler pipeline:
// posts and comment links, the explicit fetch result, the HTML extractor, and
// the interfaces the discovery loop and worker pools are wired through.
package crawler
