// Blogrec - Blog Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/blogrec

package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/tomtom215/blogrec/internal/recommend"
	"github.com/tomtom215/blogrec/internal/validation"
)

// PopularQuery holds the popular endpoint's query parameters.
type PopularQuery struct {
	UserID int `validate:"gte=0"`
	Limit  int `validate:"gte=0,lte=100"`
}

func (q *PopularQuery) parse(r *http.Request) error {
	values := r.URL.Query()
	var err error
	if q.UserID, err = intParam(values.Get("user_id")); err != nil {
		return &recommend.ValidationError{Field: "user_id", Reason: "must be an integer"}
	}
	if q.Limit, err = intParam(values.Get("limit")); err != nil {
		return &recommend.ValidationError{Field: "limit", Reason: "must be an integer"}
	}
	if verr := validation.ValidateStruct(q); verr != nil {
		first := verr.First()
		return &recommend.ValidationError{Field: first.Field(), Reason: first.Error()}
	}
	return nil
}

// intParam parses an optional integer; an empty value is 0.
func intParam(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}

// maxImportBody bounds the item import request body.
const maxImportBody = 8 << 20

// ItemRequest is one post in an import request.
type ItemRequest struct {
	ItemID  int    `json:"item_id" validate:"gt=0"`
	Content string `json:"content" validate:"required"`
	Topic   string `json:"topic" validate:"omitempty,max=128"`
}

func (req *ItemRequest) validate() error {
	if verr := validation.ValidateStruct(req); verr != nil {
		first := verr.First()
		return &recommend.ValidationError{Field: first.Field(), Reason: first.Error()}
	}
	return nil
}

func (req *ItemRequest) toItem() recommend.Item {
	return recommend.Item{ID: req.ItemID, Content: req.Content, Topic: req.Topic}
}

// decodeJSONBody decodes a size-limited JSON body into dst.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxImportBody)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return &recommend.ValidationError{Field: "body", Reason: fmt.Sprintf("exceeds %d bytes", tooLarge.Limit)}
		}
		return &recommend.ValidationError{Field: "body", Reason: "invalid JSON"}
	}
	return nil
}
