// Package docs provides generated OpenAPI documentation.
//
// storyforge API
//
//	@title			storyforge API
//	@version		1.0
//	@description	Batch orchestration API for story sheet, image, video and narration generation.
//
//	@contact.name	API Support
//	@contact.url	https://github.com/jackzampolin/storyforge
//
//	@license.name	MIT
//	@license.url	https://opensource.org/licenses/MIT
//
//	@host		localhost:8090
//	@BasePath	/
//
//	@schemes	http
package docs

//go:generate swag init -g ../cmd/storyforge/serve.go -o ./swagger --parseDependency --parseInternal
