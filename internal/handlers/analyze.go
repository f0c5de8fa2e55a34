package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/cassiama/LicenseGuard-API/internal/logger"
	"github.com/cassiama/LicenseGuard-API/internal/manifest"
	"github.com/cassiama/LicenseGuard-API/internal/requestdata"
	"github.com/cassiama/LicenseGuard-API/internal/services"
)

const defaultProjectName = "untitled"

type AnalyzeHandler struct {
	log             *logger.Logger
	analysisService services.AnalysisService
}

func NewAnalyzeHandler(log *logger.Logger, analysisService services.AnalysisService) *AnalyzeHandler {
	return &AnalyzeHandler{
		log:             log.With("handler", "AnalyzeHandler"),
		analysisService: analysisService,
	}
}

// Analyze accepts a multipart requirements.txt upload and runs the full
// orchestration synchronously, answering with the terminal project state.
func (ah *AnalyzeHandler) Analyze(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		c.Header("WWW-Authenticate", "Bearer")
		c.JSON(http.StatusUnauthorized, ErrorEnvelope{Detail: "Not authenticated"})
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, ErrorEnvelope{Detail: "A requirements.txt file is required."})
		return
	}
	f, err := fileHeader.Open()
	if err != nil {
		RespondError(c, err)
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		RespondError(c, err)
		return
	}

	projectName := c.PostForm("project_name")
	if projectName == "" {
		projectName = defaultProjectName
	}

	up := manifest.Upload{
		Filename:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Data:        data,
	}
	resp, err := ah.analysisService.Analyze(c.Request.Context(), rd.UserID, projectName, up)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, resp)
}
