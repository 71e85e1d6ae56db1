// Package settings persists the runtime-tunable generation defaults as a
// JSON file. The service layer reads them to fill fields a request leaves
// unset; the config API exposes them for inspection and partial updates.
package settings
