// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package rename serves the identifier renaming engine over HTTP.
//
// Endpoints:
//
//	POST /v1/rename/analyze  - Scope graph and binding index of a source
//	POST /v1/rename/validate - Validate a (rewritten) source
//	POST /v1/rename/rename   - Rename the bindings of a source
//	GET  /v1/rename/health   - Health check
//
// Example:
//
//	renamer := pipeline.NewRenamer(o, pipeline.OptionsFromConfig(cfg, logger)...)
//	handlers := rename.NewHandlers(renamer, cfg, logger)
//
//	v1 := router.Group("/v1")
//	rename.RegisterRoutes(v1, handlers)
package rename

import "github.com/gin-gonic/gin"

// RegisterRoutes registers the renaming routes under rg.
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	r := rg.Group("/rename")
	{
		r.POST("/analyze", handlers.HandleAnalyze)
		r.POST("/validate", handlers.HandleValidate)
		r.POST("/rename", handlers.HandleRename)
		r.GET("/health", handlers.HandleHealth)
	}
}
