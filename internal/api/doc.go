// Package api implements the HTTP handlers for the generation, training,
// model, template, settings, and audio tool endpoints. Handlers stay thin:
// decode and validate the request, call a service, map errors centrally
// (errors.go), and respond through api/shared.
package api
