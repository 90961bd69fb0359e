package server

import (
	"fmt"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Jacob-Makopo/FileWhatwhat/model"
	"github.com/Jacob-Makopo/FileWhatwhat/store"
	"github.com/Jacob-Makopo/FileWhatwhat/upload"
)

const dayLayout = "2006-01-02"

type uploadAPI struct {
	svc     *upload.Service
	maxSize int64
}

func registerUploadAPI(g *echo.Group, opts *Options) {
	api := uploadAPI{svc: opts.Uploads, maxSize: opts.MaxUploadSize}

	ug := g.Group("/uploads")
	ug.POST("", api.create)
	ug.GET("", api.query)

	dg := ug.Group("/:id")
	dg.GET("", api.retrieve)
	dg.PATCH("/status", api.setStatus)
	dg.DELETE("", api.destroy)
}

type createForm struct {
	CompanyIDs     []int64 `form:"company_ids" validate:"required,min=1,dive,gt=0"`
	MunicipalityID int64   `form:"municipality_id" validate:"required,gt=0"`
}

type listQuery struct {
	Status string `query:"status" validate:"omitempty,oneof=Pending Processing Completed Rejected"`
	Search string `query:"search"`
	From   string `query:"from" validate:"omitempty,datetime=2006-01-02"`
	To     string `query:"to" validate:"omitempty,datetime=2006-01-02"`
	Limit  int    `query:"limit" validate:"omitempty,min=1,max=500"`
}

type statusRequest struct {
	Status string `json:"status" validate:"required,oneof=Pending Processing Completed Rejected"`
}

func (api *uploadAPI) create(ctx echo.Context) error {
	var data createForm
	if err := ctx.Bind(&data); err != nil {
		return err
	}
	if err := ctx.Validate(&data); err != nil {
		return err
	}

	form, err := ctx.MultipartForm()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "multipart form expected").SetInternal(err)
	}

	headers := form.File["original_files"]
	if len(headers) == 0 {
		return fieldErrors{"original_files": "original_files is a required field"}
	}

	req := upload.Request{
		CompanyIDs:     data.CompanyIDs,
		MunicipalityID: data.MunicipalityID,
	}
	for _, fh := range headers {
		content, err := readFile("original_files", fh, api.maxSize)
		if err != nil {
			return err
		}
		req.OriginalFiles = append(req.OriginalFiles, upload.File{Name: fh.Filename, Content: content})
	}
	if req.WorkingsFile, err = optionalFile(form.File["workings_file"], "workings_file", api.maxSize); err != nil {
		return err
	}
	if req.SystemsImportFile, err = optionalFile(form.File["systems_import_file"], "systems_import_file", api.maxSize); err != nil {
		return err
	}

	uploads, err := api.svc.Create(ctx.Request().Context(), req)
	if err != nil {
		return fmt.Errorf("creating uploads: %w", err)
	}
	return ctx.JSON(http.StatusCreated, uploads)
}

func (api *uploadAPI) query(ctx echo.Context) error {
	var q listQuery
	if err := ctx.Bind(&q); err != nil {
		return err
	}
	if err := ctx.Validate(&q); err != nil {
		return err
	}

	f := store.Filter{
		Status: model.Status(q.Status),
		Search: q.Search,
		Limit:  q.Limit,
	}
	if q.From != "" {
		// validated above
		f.From, _ = time.Parse(dayLayout, q.From)
	}
	if q.To != "" {
		to, _ := time.Parse(dayLayout, q.To)
		f.To = to.Add(24*time.Hour - time.Nanosecond)
	}

	uploads, err := api.svc.List(ctx.Request().Context(), f)
	if err != nil {
		return fmt.Errorf("listing uploads: %w", err)
	}
	return ctx.JSON(http.StatusOK, uploads)
}

func (api *uploadAPI) retrieve(ctx echo.Context) error {
	u, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, u)
}

func (api *uploadAPI) setStatus(ctx echo.Context) error {
	var data statusRequest
	if err := ctx.Bind(&data); err != nil {
		return err
	}
	if err := ctx.Validate(&data); err != nil {
		return err
	}

	u, err := api.svc.SetStatus(ctx.Request().Context(), ctx.Param("id"), model.Status(data.Status))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, u)
}

func (api *uploadAPI) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func optionalFile(headers []*multipart.FileHeader, field string, max int64) (*upload.File, error) {
	if len(headers) == 0 {
		return nil, nil
	}
	fh := headers[0]
	content, err := readFile(field, fh, max)
	if err != nil {
		return nil, err
	}
	return &upload.File{Name: fh.Filename, Content: content}, nil
}
