package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"schedmatch/internal/domain"
	"schedmatch/internal/service/sessions"
	"schedmatch/internal/store"
)

type sessionService interface {
	Start(ctx context.Context, recruiterID, candidateID string) (domain.Session, error)
	SendOffer(ctx context.Context, recruiterID, candidateID string) (domain.Session, error)
	IngestResponse(ctx context.Context, recruiterID, candidateID string, rawSlots []string) (domain.Session, error)
	Evaluate(ctx context.Context, recruiterID, candidateID string) (domain.Session, error)
	Status(ctx context.Context, recruiterID, candidateID string) (domain.Session, error)
}

type Server struct {
	svc  sessionService
	log  *slog.Logger
	auth AuthConfig
}

func NewServer(svc sessionService, auth AuthConfig, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		svc:  svc,
		log:  log.With(slog.String("component", "http")),
		auth: auth,
	}
}

func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	api := router.Group("/")
	api.Use(AuthMiddleware(s.auth))
	{
		api.POST("/kickoff", s.handleKickoff)
		api.POST("/ingestEmail", s.handleIngestEmail)
		api.POST("/offer", s.handleOffer)
		api.GET("/status", s.handleStatus)
	}
	return router
}

type pairingRequest struct {
	RecruiterID string `json:"recruiterId" binding:"required"`
	CandidateID string `json:"candidateId" binding:"required"`
}

// POST /kickoff — start the session, then send the initial offer.
func (s *Server) handleKickoff(c *gin.Context) {
	log := s.log.With(slog.String("route", "kickoff"))

	var req pairingRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	if _, err := s.svc.Start(ctx, req.RecruiterID, req.CandidateID); err != nil {
		s.writeError(c, log, err, req)
		return
	}

	sess, err := s.svc.SendOffer(ctx, req.RecruiterID, req.CandidateID)
	if err != nil {
		// A live session past Created is already offered; kickoff stays
		// idempotent by reporting the current state instead of failing.
		if errors.Is(err, domain.ErrInvalidTransition) {
			current, statusErr := s.svc.Status(ctx, req.RecruiterID, req.CandidateID)
			if statusErr == nil {
				c.JSON(http.StatusOK, gin.H{"status": "already_started", "session": current})
				return
			}
		}
		s.writeError(c, log, err, req)
		return
	}

	log.Info("kickoff complete",
		slog.String("recruiter_id", req.RecruiterID),
		slog.String("candidate_id", req.CandidateID),
	)
	c.JSON(http.StatusOK, gin.H{"status": "kickoff_started", "session": sess})
}

type ingestEmailRequest struct {
	RecruiterID string   `json:"recruiterId" binding:"required"`
	CandidateID string   `json:"candidateId" binding:"required"`
	RawSlots    []string `json:"rawSlots"`
}

// POST /ingestEmail — candidate response arrived. Slots come pre-extracted;
// free-text parsing happens upstream.
func (s *Server) handleIngestEmail(c *gin.Context) {
	log := s.log.With(slog.String("route", "ingestEmail"))

	var req ingestEmailRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sess, err := s.svc.IngestResponse(c.Request.Context(), req.RecruiterID, req.CandidateID, req.RawSlots)
	if err != nil {
		s.writeError(c, log, err, pairingRequest{RecruiterID: req.RecruiterID, CandidateID: req.CandidateID})
		return
	}

	outcome := "no_intersection"
	if sess.Stage == domain.StageConfirmed {
		outcome = "confirmed"
	}
	log.Info("candidate response ingested",
		slog.String("recruiter_id", req.RecruiterID),
		slog.String("candidate_id", req.CandidateID),
		slog.String("outcome", outcome),
	)
	c.JSON(http.StatusOK, gin.H{"status": outcome, "session": sess})
}

// POST /offer — re-offer after Unmatched, with refreshed availability.
func (s *Server) handleOffer(c *gin.Context) {
	log := s.log.With(slog.String("route", "offer"))

	var req pairingRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sess, err := s.svc.SendOffer(c.Request.Context(), req.RecruiterID, req.CandidateID)
	if err != nil {
		s.writeError(c, log, err, req)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "offered", "session": sess})
}

// GET /status?recruiterId=..&candidateId=..
func (s *Server) handleStatus(c *gin.Context) {
	recruiterID := c.Query("recruiterId")
	candidateID := c.Query("candidateId")
	if recruiterID == "" || candidateID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "recruiterId and candidateId required"})
		return
	}

	sess, err := s.svc.Status(c.Request.Context(), recruiterID, candidateID)
	if err != nil {
		s.writeError(c, s.log.With(slog.String("route", "status")), err,
			pairingRequest{RecruiterID: recruiterID, CandidateID: candidateID})
		return
	}
	c.JSON(http.StatusOK, sess)
}

func (s *Server) writeError(c *gin.Context, log *slog.Logger, err error, req pairingRequest) {
	var vErr *sessions.ValidationError
	switch {
	case errors.As(err, &vErr):
		log.Warn("invalid request", slog.Any("err", err),
			slog.String("recruiter_id", req.RecruiterID))
		c.JSON(http.StatusBadRequest, gin.H{"error": vErr.Error()})
	case errors.Is(err, domain.ErrInvalidTransition):
		log.Warn("invalid transition",
			slog.String("recruiter_id", req.RecruiterID),
			slog.String("candidate_id", req.CandidateID))
		c.JSON(http.StatusConflict, gin.H{"error": "event not valid for current stage"})
	case errors.Is(err, sessions.ErrEmptyAvailability):
		log.Warn("no availability",
			slog.String("recruiter_id", req.RecruiterID))
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
	default:
		log.Error("request failed", slog.Any("err", err),
			slog.String("recruiter_id", req.RecruiterID))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
