package main

// General API documentation for swaggo. Run `swag init -g cmd/textgend/docs.go`
// to generate the docs package consumed by -tags=swagger builds.
//
// @title           textgend API
// @version         1.0
// @description     HTTP API for text generation, tokenization and model info.
//
// @BasePath  /
//
// @schemes http https
