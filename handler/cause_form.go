package handler

import (
	"encoding/json"
	"lighthouse-api/common"
	"lighthouse-api/model"
	"mime"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"
)

const maxMultipartMemory = 10 << 20

func isMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "multipart/form-data"
}

// causeForm reads typed values out of a parsed multipart form.
type causeForm struct {
	values map[string][]string
}

func newCauseForm(r *http.Request) (*causeForm, *common.AppError) {
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		return nil, common.NewAppError(http.StatusBadRequest, "Invalid multipart form", err)
	}
	return &causeForm{values: r.MultipartForm.Value}, nil
}

func (f *causeForm) has(field string) bool {
	_, ok := f.values[field]
	return ok
}

func (f *causeForm) text(field string) string {
	if v := f.values[field]; len(v) > 0 {
		return strings.TrimSpace(v[0])
	}
	return ""
}

func (f *causeForm) optionalText(field string) *string {
	if !f.has(field) {
		return nil
	}
	v := f.text(field)
	return &v
}

func (f *causeForm) decimal(field string) (*decimal.Decimal, *common.AppError) {
	if !f.has(field) || f.text(field) == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(f.text(field))
	if err != nil {
		return nil, common.NewAppError(http.StatusBadRequest, field+" must be a number", err)
	}
	return &d, nil
}

// stringList accepts either a JSON array in a single field value or the field
// repeated once per entry.
func (f *causeForm) stringList(field string) ([]string, *common.AppError) {
	raw, ok := f.values[field]
	if !ok {
		return nil, nil
	}
	if len(raw) == 1 && strings.HasPrefix(strings.TrimSpace(raw[0]), "[") {
		var list []string
		if err := json.Unmarshal([]byte(raw[0]), &list); err != nil {
			return nil, common.NewAppError(http.StatusBadRequest, field+" must be a JSON array of strings", err)
		}
		return list, nil
	}
	list := make([]string, 0, len(raw))
	for _, v := range raw {
		if v = strings.TrimSpace(v); v != "" {
			list = append(list, v)
		}
	}
	return list, nil
}

func parseCreateCause(r *http.Request) (model.CreateCauseRequest, *common.AppError) {
	var req model.CreateCauseRequest
	if !isMultipart(r) {
		if err := common.ValidateAndDecode(r, &req); err != nil {
			return req, err
		}
		return req, nil
	}

	form, appErr := newCauseForm(r)
	if appErr != nil {
		return req, appErr
	}
	req.Title = form.text("title")
	req.Description = form.text("description")
	req.Category = form.text("category")

	goal, appErr := form.decimal("goal")
	if appErr != nil {
		return req, appErr
	}
	if goal != nil {
		req.Goal = *goal
	}

	existing, appErr := form.stringList("existingImages")
	if appErr != nil {
		return req, appErr
	}
	added, appErr := form.stringList("imageUrls")
	if appErr != nil {
		return req, appErr
	}
	req.ImageURLs = append(existing, added...)

	return req, common.ValidateStruct(&req)
}

func parseUpdateCause(r *http.Request) (model.UpdateCauseRequest, *common.AppError) {
	var req model.UpdateCauseRequest
	if !isMultipart(r) {
		if err := common.ValidateAndDecode(r, &req); err != nil {
			return req, err
		}
		return req, nil
	}

	form, appErr := newCauseForm(r)
	if appErr != nil {
		return req, appErr
	}
	req.Title = form.optionalText("title")
	req.Description = form.optionalText("description")
	req.Category = form.optionalText("category")

	if req.Goal, appErr = form.decimal("goal"); appErr != nil {
		return req, appErr
	}
	if req.ExistingImages, appErr = form.stringList("existingImages"); appErr != nil {
		return req, appErr
	}
	if req.ImagesToDelete, appErr = form.stringList("imagesToDelete"); appErr != nil {
		return req, appErr
	}
	if req.ImageURLs, appErr = form.stringList("imageUrls"); appErr != nil {
		return req, appErr
	}

	return req, common.ValidateStruct(&req)
}
