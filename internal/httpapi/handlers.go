package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mesh-intelligence/bazaar/internal/feed"
	"github.com/mesh-intelligence/bazaar/pkg/types"
)

// Client-facing messages.
const (
	msgNameRequired  = "Item name is required."
	msgItemExists    = "This item already exists."
	msgItemNotFound  = "Item not found"
	msgInvalidPrice  = "Invalid input data."
	msgItemAdded     = "Item added successfully"
	msgPriceAdded    = "Success"
	msgNoUploads     = "Image uploads are not enabled."
	msgInvalidUpload = "Invalid image upload."
)

// createItemRequest is the JSON form of POST /api/items.
type createItemRequest struct {
	Name string  `json:"name"`
	Tags []int64 `json:"tags"`
}

// createPriceRequest is the body of POST /api/prices. Pointers distinguish
// absent fields from zero.
type createPriceRequest struct {
	ItemID *int64 `json:"itemId"`
	Price  *int64 `json:"price"`
}

func (s *Server) listTags(c *gin.Context) {
	tags, err := s.market.ListTags(c.Request.Context())
	if err != nil {
		s.fail(c, "list tags", err)
		return
	}
	c.JSON(http.StatusOK, tags)
}

func (s *Server) listItems(c *gin.Context) {
	filter := types.ItemFilter{TagIDs: types.ParseTagIDs(c.Query("tags"))}
	items, err := s.market.ListItems(c.Request.Context(), filter)
	if err != nil {
		s.fail(c, "list items", err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (s *Server) getItem(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		abort(c, http.StatusNotFound, msgItemNotFound)
		return
	}

	detail, err := s.market.GetItemDetail(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			abort(c, http.StatusNotFound, msgItemNotFound)
			return
		}
		s.fail(c, "get item", err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// addItem accepts multipart or urlencoded forms (name, tags, image) and
// JSON bodies (name, tags). The name is checked before any image is
// stored, and a stored image is removed if the insert fails.
func (s *Server) addItem(c *gin.Context) {
	var (
		in          types.AddItemInput
		isJSON      = c.ContentType() == gin.MIMEJSON
		imageStored bool
	)
	if isJSON {
		var req createItemRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			abort(c, http.StatusBadRequest, msgNameRequired)
			return
		}
		in = types.AddItemInput{Name: req.Name, TagIDs: req.Tags}
	} else {
		if s.uploads != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.uploads.MaxBytes()+1<<20)
		}
		if err := parseForm(c); err != nil {
			s.logger.Debug("parse item form", "error", err)
			abort(c, http.StatusBadRequest, msgInvalidUpload)
			return
		}
		in = types.AddItemInput{
			Name:   c.PostForm("name"),
			TagIDs: types.ParseTagIDs(c.PostForm("tags")),
		}
	}

	if err := in.Normalize(); err != nil {
		abort(c, http.StatusBadRequest, msgNameRequired)
		return
	}

	if !isJSON {
		fh, err := c.FormFile("image")
		switch {
		case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
		case err != nil:
			abort(c, http.StatusBadRequest, msgInvalidUpload)
			return
		case s.uploads == nil:
			abort(c, http.StatusBadRequest, msgNoUploads)
			return
		default:
			url, err := s.uploads.SaveFile(fh)
			if err != nil {
				s.fail(c, "store image", err)
				return
			}
			in.ImageURL = &url
			imageStored = true
		}
	}

	id, err := s.market.AddItem(c.Request.Context(), in)
	if err != nil {
		if imageStored {
			if rmErr := s.uploads.Remove(*in.ImageURL); rmErr != nil {
				s.logger.Warn("remove orphaned image", "url", *in.ImageURL, "error", rmErr)
			}
		}
		switch {
		case errors.Is(err, types.ErrConflict):
			abort(c, http.StatusConflict, msgItemExists)
		case errors.Is(err, types.ErrValidation):
			abort(c, http.StatusBadRequest, msgNameRequired)
		default:
			s.fail(c, "add item", err)
		}
		return
	}

	s.publish(feed.ItemAdded(id, in.Name))
	c.JSON(http.StatusCreated, gin.H{"message": msgItemAdded, "id": id})
}

func (s *Server) addPrice(c *gin.Context) {
	var req createPriceRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ItemID == nil || req.Price == nil {
		abort(c, http.StatusBadRequest, msgInvalidPrice)
		return
	}
	in := types.AddPriceInput{ItemID: *req.ItemID, Price: *req.Price}
	if err := in.Validate(); err != nil {
		abort(c, http.StatusBadRequest, msgInvalidPrice)
		return
	}

	id, err := s.market.AddPrice(c.Request.Context(), in)
	if err != nil {
		if errors.Is(err, types.ErrValidation) {
			abort(c, http.StatusBadRequest, msgInvalidPrice)
			return
		}
		s.fail(c, "add price", err)
		return
	}

	s.publish(feed.PriceAdded(in.ItemID, id, in.Price))
	c.JSON(http.StatusCreated, gin.H{"message": msgPriceAdded, "id": id})
}

// parseForm reads a multipart or urlencoded body up front. c.PostForm
// swallows parse errors, so a truncated or oversized body would otherwise
// look like a missing name.
func parseForm(c *gin.Context) error {
	if c.ContentType() == gin.MIMEMultipartPOSTForm {
		_, err := c.MultipartForm()
		return err
	}
	return c.Request.ParseForm()
}
