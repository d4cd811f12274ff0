package serving

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Record is one translation record from a JSONL invocation body.
type Record struct {
	RecordID       string  `json:"recordId"`
	SourceText     string  `json:"source_text"`
	TranslatedText *string `json:"translated_text"`
	SourceLanguage string  `json:"source_language"`
	TargetLanguage string  `json:"target_language"`
}

// Prediction is one scored record.
type Prediction struct {
	RecordID string   `json:"recordId,omitempty"`
	Score    *float64 `json:"score"`
}

// Server is the endpoint front server.
type Server struct {
	scorer Scorer
	log    *zap.Logger
}

// NewServer creates a Server.
func NewServer(scorer Scorer, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{scorer: scorer, log: log}
}

// Router builds the HTTP routes.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/ping", s.ping)
	r.POST("/invocations", s.invocations)
	return r
}

// ping always reports healthy so endpoint creation does not loop while
// the model process is still warming up.
func (s *Server) ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

func (s *Server) invocations(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	contentType := strings.ToLower(c.GetHeader("Content-Type"))
	var predictions []Prediction
	if strings.Contains(contentType, "jsonl") || strings.Contains(contentType, "json-lines") {
		predictions, err = s.scoreRecords(c, body)
	} else if strings.Contains(contentType, "json") {
		predictions, err = s.scorePairs(c, body)
	} else {
		c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": "content type must be application/json or application/jsonl"})
		return
	}
	if err != nil {
		s.log.Error("prediction failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"predictions": predictions})
}

// scorePairs handles the plain JSON shape {"data": [{"src","mt"}]}.
// Predictions come back in input order without record ids.
func (s *Server) scorePairs(c *gin.Context, body []byte) ([]Prediction, error) {
	var request struct {
		Data []Pair `json:"data"`
	}
	if err := json.Unmarshal(body, &request); err != nil {
		return nil, fmt.Errorf("failed to decode request: %w", err)
	}
	if len(request.Data) == 0 {
		return nil, fmt.Errorf("no data provided")
	}

	scores, err := s.scorer.Score(c.Request.Context(), request.Data)
	if err != nil {
		return nil, err
	}
	predictions := make([]Prediction, len(scores))
	for i := range scores {
		score := scores[i]
		predictions[i] = Prediction{Score: &score}
	}
	return predictions, nil
}

// scoreRecords handles JSONL translation records. Records without a
// translation keep their id and get a null score.
func (s *Server) scoreRecords(c *gin.Context, body []byte) ([]Prediction, error) {
	var records []Record
	for _, line := range strings.Split(strings.TrimSpace(string(body)), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		var rec Record
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return nil, fmt.Errorf("failed to decode record: %w", err)
		}
		records = append(records, rec)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("no data provided")
	}

	var pairs []Pair
	var scorable []int
	predictions := make([]Prediction, len(records))
	for i, rec := range records {
		predictions[i] = Prediction{RecordID: rec.RecordID}
		if rec.TranslatedText == nil {
			s.log.Warn("skipping record without translation", zap.String("recordId", rec.RecordID))
			continue
		}
		pairs = append(pairs, Pair{Src: rec.SourceText, MT: *rec.TranslatedText})
		scorable = append(scorable, i)
	}

	if len(pairs) > 0 {
		scores, err := s.scorer.Score(c.Request.Context(), pairs)
		if err != nil {
			return nil, err
		}
		for j, i := range scorable {
			score := scores[j]
			predictions[i].Score = &score
		}
	}
	return predictions, nil
}
