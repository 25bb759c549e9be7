// Package api provides the SQL sandbox REST API.
//
//	@title						SQL Sandbox API
//	@version					1.0
//	@description				Read-only inspection, sandboxed manipulation and import of tutorial databases
//	@BasePath					/api/v1
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
package api
