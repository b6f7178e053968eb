// Package docs provides generated OpenAPI documentation.
//
// imgbot API
//
//	@title			imgbot API
//	@version		1.0
//	@description	Resolves manga chapter images and writes them back to the chapter database.
//
//	@contact.name	API Support
//	@contact.url	https://github.com/jackzampolin/imgbot
//
//	@license.name	MIT
//	@license.url	https://opensource.org/licenses/MIT
//
//	@host		localhost:8080
//	@BasePath	/
//
//	@schemes	http https
package docs

//go:generate swag init -g ../cmd/imgbot/serve.go -o . --outputTypes go --parseInternal
