// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/CopyStudio/services/orchestrator/datatypes"
	"github.com/AleutianAI/CopyStudio/services/orchestrator/storage"
)

// ProductCatalog is the product store. Implemented by *storage.ProductStore.
type ProductCatalog interface {
	List() ([]datatypes.Product, error)
	Upsert(p datatypes.Product) (datatypes.Product, error)
	Delete(id string) error
}

// TrainingDocuments is the training document store. Implemented by
// *storage.TrainingStore.
type TrainingDocuments interface {
	List() ([]storage.TrainingFile, error)
	Read(path string) (string, error)
	Write(req *datatypes.TrainingDocumentWrite) (string, error)
}

// =============================================================================
// Products
// =============================================================================

// ListProducts answers GET /v1/products with the bare product array.
func ListProducts(products ProductCatalog) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := products.List()
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, list)
	}
}

// UpsertProduct answers POST /v1/products. A product without an id gets
// one derived from its name; an existing id is replaced.
func UpsertProduct(products ProductCatalog) gin.HandlerFunc {
	return func(c *gin.Context) {
		var p datatypes.Product
		if !bindJSON(c, &p) {
			return
		}
		saved, err := products.Upsert(p)
		if err != nil {
			respondError(c, err)
			return
		}
		slog.Info("product saved", "product_id", saved.ID)
		c.JSON(http.StatusOK, gin.H{"success": true, "product": saved})
	}
}

// DeleteProduct answers DELETE /v1/products with body {"id": "..."}.
func DeleteProduct(products ProductCatalog) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.DeleteProductRequest
		if !bindJSON(c, &req) {
			return
		}
		if err := req.Validate(); err != nil {
			respondError(c, err)
			return
		}
		if err := products.Delete(req.ID); err != nil {
			respondError(c, err)
			return
		}
		slog.Info("product deleted", "product_id", req.ID)
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

// =============================================================================
// Training Documents
// =============================================================================

// GetTrainingDocuments answers GET /v1/training-documents.
//
// Without a query it lists every document with the category table. With
// ?path= it returns that document's content.
func GetTrainingDocuments(docs TrainingDocuments) gin.HandlerFunc {
	return func(c *gin.Context) {
		if path, ok := c.GetQuery("path"); ok {
			content, err := docs.Read(path)
			if err != nil {
				respondError(c, err)
				return
			}
			c.JSON(http.StatusOK, gin.H{"path": path, "content": content})
			return
		}
		files, err := docs.List()
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"files": files, "categories": storage.Categories})
	}
}

// WriteTrainingDocument answers POST /v1/training-documents. Returns the
// content as stored, which differs from the input for HTML.
func WriteTrainingDocument(docs TrainingDocuments) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.TrainingDocumentWrite
		if !bindJSON(c, &req) {
			return
		}
		content, err := docs.Write(&req)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "path": req.Path, "content": content})
	}
}
