// Package crawl implements the harvest pipeline: city discovery, bounded
// concurrent detail extraction, batched checkpointing, and the run
// orchestrator that sequences cities one at a time.
package crawl
