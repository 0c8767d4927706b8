// Package handlers provides the huma API operations of the checker service.
package handlers

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/nuken/m3u-epg-checker/internal/analyzer"
	"github.com/nuken/m3u-epg-checker/internal/validate"
)

// base64Overhead covers encoding growth of uploaded files plus JSON framing.
const base64Overhead = 4.0/3.0*2 + 0.1

// Analyzer runs one analysis request.
type Analyzer interface {
	Analyze(ctx context.Context, req analyzer.Request) *analyzer.Result
}

// AnalyzeHandler serves the analysis endpoint.
type AnalyzeHandler struct {
	analyzer     Analyzer
	maxBodyBytes int64
}

// NewAnalyzeHandler creates a handler accepting inputs of up to maxInputSize
// bytes per source.
func NewAnalyzeHandler(a Analyzer, maxInputSize int64) *AnalyzeHandler {
	return &AnalyzeHandler{
		analyzer:     a,
		maxBodyBytes: int64(float64(maxInputSize) * base64Overhead),
	}
}

// Register registers the analysis routes with the API.
func (h *AnalyzeHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID:  "analyze",
		Method:       http.MethodPost,
		Path:         "/api/v1/analyze",
		Summary:      "Analyse a playlist and guide",
		Description:  "Validates an M3U playlist and/or XMLTV guide, cross-references channel ids and optionally generates a fixed playlist. Each source may be pasted text, a base64 file or a URL; text wins over file, file wins over URL.",
		Tags:         []string{"Analysis"},
		MaxBodyBytes: h.maxBodyBytes,
	}, h.Analyze)
}

// AnalyzeRequest is the JSON body of an analysis request.
type AnalyzeRequest struct {
	Mode string `json:"mode,omitempty" enum:"basic,advanced" default:"basic" doc:"Validation mode"`

	M3UText     string `json:"m3u_text,omitempty" doc:"Pasted playlist text"`
	M3UFile     []byte `json:"m3u_file,omitempty" doc:"Uploaded playlist, base64 encoded; may be gzip, bzip2 or xz compressed"`
	M3UFilename string `json:"m3u_filename,omitempty" doc:"Name of the uploaded playlist, used for extension checks"`
	M3UURL      string `json:"m3u_url,omitempty" doc:"Playlist URL to fetch"`

	EPGText     string `json:"epg_text,omitempty" doc:"Pasted XMLTV text"`
	EPGFile     []byte `json:"epg_file,omitempty" doc:"Uploaded guide, base64 encoded; may be gzip, bzip2 or xz compressed"`
	EPGFilename string `json:"epg_filename,omitempty" doc:"Name of the uploaded guide, used for extension checks"`
	EPGURL      string `json:"epg_url,omitempty" doc:"Guide URL to fetch"`

	Fix *bool `json:"fix,omitempty" doc:"Generate a fixed playlist (default true)"`
}

// AnalyzeInput is the input for the analysis endpoint.
type AnalyzeInput struct {
	Body AnalyzeRequest
}

// AnalyzeOutput is the output for the analysis endpoint.
type AnalyzeOutput struct {
	Body *analyzer.Result
}

// Analyze runs the pipeline. Problems with the inputs are part of the
// result, so any well-formed request gets a 200.
func (h *AnalyzeHandler) Analyze(ctx context.Context, input *AnalyzeInput) (*AnalyzeOutput, error) {
	mode, err := validate.ParseMode(input.Body.Mode)
	if err != nil {
		return nil, huma.Error422UnprocessableEntity("invalid mode", err)
	}

	b := input.Body
	req := analyzer.Request{
		Mode:          mode,
		M3U:           analyzer.Source{Text: b.M3UText, File: b.M3UFile, Filename: b.M3UFilename, URL: b.M3UURL},
		EPG:           analyzer.Source{Text: b.EPGText, File: b.EPGFile, Filename: b.EPGFilename, URL: b.EPGURL},
		GenerateFixes: b.Fix == nil || *b.Fix,
	}

	return &AnalyzeOutput{Body: h.analyzer.Analyze(ctx, req)}, nil
}
