// Package prompts manages the prompt template library: reusable text
// fragments grouped by category that callers combine into generation
// prompts. The library is a JSON file on disk, seeded with defaults on
// first use and guarded by a mutex for concurrent API access.
package prompts
