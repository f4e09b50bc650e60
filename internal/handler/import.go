package handler

import (
    "errors"
    "io"
    "net/http"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/rs/zerolog"

    "github.com/iliyamo/trunk-player/internal/metrics"
    "github.com/iliyamo/trunk-player/internal/service"
)

// maxImportBody bounds a recorder payload.  Real payloads are a few KB.
const maxImportBody = 1 << 20

// ImportHandler serves the recorder import endpoint.
type ImportHandler struct {
    Ingestor *service.Ingestor
    Metrics  *metrics.Metrics
    Log      zerolog.Logger
}

// Authorize checks the import token and counts rejections.  It is meant
// for middleware.ImportToken.
func (h *ImportHandler) Authorize(header string) error {
    if err := h.Ingestor.Authorize(header); err != nil {
        h.Metrics.RecordImport(metrics.ResultDenied, 0)
        h.Log.Warn().Msg("import rejected: invalid token")
        return err
    }
    return nil
}

// Import handles POST /api/v2/import_transmission.
//
//   - 201 {"status":"success","slug":...} once the transmission is stored
//   - 400 {"error":{field:[messages]}} when the payload is invalid
//   - 500 when storage fails; nothing partial is left behind
func (h *ImportHandler) Import(c echo.Context) error {
    began := time.Now()
    body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxImportBody+1))
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": echo.Map{"non_field_errors": []string{"unreadable body"}}})
    }
    if len(body) > maxImportBody {
        return c.JSON(http.StatusRequestEntityTooLarge, echo.Map{"error": "payload too large"})
    }

    req, err := service.ParseImportRequest(body)
    var verr *service.ValidationError
    if errors.As(err, &verr) {
        h.Metrics.RecordImport(metrics.ResultInvalid, time.Since(began))
        h.Log.Info().Str("error", verr.Error()).Msg("import rejected: invalid payload")
        return c.JSON(http.StatusBadRequest, echo.Map{"error": verr.Fields})
    }
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": echo.Map{"non_field_errors": []string{err.Error()}}})
    }

    t, err := h.Ingestor.ImportTransmission(c.Request().Context(), req)
    if err != nil {
        h.Log.Error().Err(err).Str("system", req.System).Int64("talkgroup", req.TalkGroup).Msg("import failed")
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not store transmission"})
    }
    return c.JSON(http.StatusCreated, echo.Map{"status": "success", "slug": t.Slug})
}
