package server

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Jacob-Makopo/FileWhatwhat/extract"
	"github.com/Jacob-Makopo/FileWhatwhat/model"
)

type extractAPI struct {
	extractor *extract.Extractor
	maxSize   int64
}

func registerExtractAPI(g *echo.Group, opts *Options) {
	api := extractAPI{extractor: opts.Extractor, maxSize: opts.MaxUploadSize}
	g.POST("/extract", api.extract)
}

type ExtractResponse struct {
	Name          string  `json:"name"`
	Extension     string  `json:"extension"`
	ExtractedDate *string `json:"extracted_date"`
}

func (api *extractAPI) extract(ctx echo.Context) error {
	fh, err := ctx.FormFile("file")
	if err != nil {
		return fieldErrors{"file": "file is a required field"}
	}
	content, err := readFile("file", fh, api.maxSize)
	if err != nil {
		return err
	}

	ext := extract.ExtensionOf(fh.Filename)
	date, ok := api.extractor.Extract(content, ext)
	return ctx.JSON(http.StatusOK, ExtractResponse{
		Name:          fh.Filename,
		Extension:     ext,
		ExtractedDate: model.FormatDate(date, ok),
	})
}

// readFile loads an uploaded file, rejecting it when it exceeds max bytes.
// A max of zero disables the limit.
func readFile(field string, fh *multipart.FileHeader, max int64) ([]byte, error) {
	if max > 0 && fh.Size > max {
		return nil, fieldErrors{field: fmt.Sprintf("%s exceeds the maximum size of %d bytes", fh.Filename, max)}
	}

	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", fh.Filename, err)
	}
	defer f.Close()

	var r io.Reader = f
	if max > 0 {
		r = io.LimitReader(f, max+1)
	}
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", fh.Filename, err)
	}
	if max > 0 && int64(len(content)) > max {
		return nil, fieldErrors{field: fmt.Sprintf("%s exceeds the maximum size of %d bytes", fh.Filename, max)}
	}
	return content, nil
}
