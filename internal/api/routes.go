package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"proviewer/backend/internal/afdb"
	"proviewer/backend/internal/esmfold"
	"proviewer/backend/internal/store"
	"proviewer/backend/internal/structure"
	"proviewer/backend/internal/util"
	"proviewer/backend/internal/viewer"
)

const defaultMaxUploadBytes = 20 << 20

// Config defines server dependencies.
type Config struct {
	DBPath         string
	SilentDB       bool
	AllowedOrigins []string
	ESMFold        esmfold.Config
	AFDB           afdb.Config
	MaxUploadBytes int64
	ViewTTL        time.Duration
}

// Server wires HTTP handlers with the folding and database clients and the
// per-session view store.
type Server struct {
	db             *store.Database
	folder         *esmfold.Client
	afdb           *afdb.Client
	notifier       *ActionNotifier
	allowedOrigins []string
	maxUploadBytes int64
	viewTTL        time.Duration
}

// NewServer constructs the API server.
func NewServer(cfg Config) (*Server, error) {
	if cfg.DBPath == "" {
		return nil, errors.New("db path required")
	}
	db, err := store.Open(cfg.DBPath, cfg.SilentDB)
	if err != nil {
		return nil, err
	}

	folder, err := esmfold.NewClient(cfg.ESMFold)
	if err != nil {
		return nil, fmt.Errorf("esmfold client: %w", err)
	}

	maxUpload := cfg.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = defaultMaxUploadBytes
	}
	viewTTL := cfg.ViewTTL
	if viewTTL <= 0 {
		viewTTL = 7 * 24 * time.Hour
	}

	logrus.WithFields(logrus.Fields{
		"max_sequence_length": folder.MaxSequenceLength(),
		"max_upload_bytes":    maxUpload,
		"view_ttl":            viewTTL,
	}).Info("proviewer server configured")

	return &Server{
		db:             db,
		folder:         folder,
		afdb:           afdb.NewClient(cfg.AFDB),
		notifier:       NewActionNotifier(),
		allowedOrigins: cfg.AllowedOrigins,
		maxUploadBytes: maxUpload,
		viewTTL:        viewTTL,
	}, nil
}

// Close releases the database handle.
func (s *Server) Close() error {
	return s.db.Close()
}

// Router configures gin routes.
func (s *Server) Router() (*gin.Engine, error) {
	r := gin.Default()
	r.MaxMultipartMemory = s.maxUploadBytes

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowCredentials = true
	if len(s.allowedOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = s.allowedOrigins
	}
	corsCfg.AllowHeaders = []string{"Origin", "Content-Type", "Accept"}
	corsCfg.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	r.Use(cors.New(corsCfg))
	r.Use(sessionMiddleware())

	r.GET("/", s.handleIndex)
	r.GET("/api/healthz", s.handleHealth)
	r.GET("/api/config", s.handleConfig)

	api := r.Group("/api")
	{
		api.POST("/predict", s.handlePredict)
		api.POST("/upload", s.handleUpload)
		api.POST("/afdb", s.handleFetch)
		api.GET("/views", s.handleListViews)
		api.GET("/views/:tab", s.handleGetView)
		api.GET("/views/:tab/download", s.handleDownload)
		api.GET("/views/:tab/plddt.svg", s.handlePLDDTPlot)
		api.DELETE("/views/:tab", s.handleClearView)
		api.GET("/events", s.handleEvents)
	}

	return r, nil
}

// PurgeExpired drops views and action statuses untouched for longer than the
// configured TTL.
func (s *Server) PurgeExpired() {
	cutoff := time.Now().Add(-s.viewTTL)
	if forgotten := s.notifier.ForgetBefore(cutoff); forgotten > 0 {
		logrus.WithField("forgotten", forgotten).Debug("dropped expired action statuses")
	}
	removed, err := s.db.PurgeViewsBefore(cutoff)
	if err != nil {
		logrus.WithError(err).Warn("purge expired views")
		return
	}
	if removed > 0 {
		logrus.WithField("removed", removed).Info("purged expired views")
	}
}

// RunJanitor calls PurgeExpired every interval until ctx is done.
func (s *Server) RunJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.PurgeExpired()
		}
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleConfig(c *gin.Context) {
	cached, err := s.db.CountPredictions()
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	tabs := make([]string, 0, len(viewer.Tabs))
	for _, tab := range viewer.Tabs {
		tabs = append(tabs, string(tab))
	}
	c.JSON(http.StatusOK, ConfigResponse{
		Title:             viewer.Title,
		MaxSequenceLength: s.folder.MaxSequenceLength(),
		MaxUploadBytes:    s.maxUploadBytes,
		DefaultSequence:   viewer.DefaultSequence,
		DefaultAccession:  viewer.DefaultAccession,
		ViewerHeight:      viewer.Height,
		Tabs:              tabs,
		CachedPredictions: cached,
	})
}

func (s *Server) handleIndex(c *gin.Context) {
	views, err := s.db.ListViews(sessionID(c))
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	byTab := make(map[viewer.Tab]*store.View, len(views))
	for i := range views {
		byTab[viewer.Tab(views[i].Tab)] = &views[i]
	}

	page := viewer.Page{
		DefaultSequence:   viewer.DefaultSequence,
		DefaultAccession:  viewer.DefaultAccession,
		MaxSequenceLength: s.folder.MaxSequenceLength(),
	}
	for _, tab := range viewer.Tabs {
		page.Panels = append(page.Panels, panelFromView(tab, byTab[tab]))
	}

	var buf bytes.Buffer
	if err := viewer.RenderPage(&buf, page); err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
}

func (s *Server) handlePredict(c *gin.Context) {
	var req PredictRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}

	sequence, err := esmfold.ValidateSequence(req.Sequence, s.folder.MaxSequenceLength())
	switch {
	case errors.Is(err, esmfold.ErrEmptySequence):
		s.renderError(c, http.StatusBadRequest, errors.New("Please enter a sequence."))
		return
	case errors.Is(err, esmfold.ErrSequenceTooLong):
		s.renderError(c, http.StatusBadRequest, fmt.Errorf("Sequence too long: max %d characters.", s.folder.MaxSequenceLength()))
		return
	case err != nil:
		s.renderError(c, http.StatusBadRequest, err)
		return
	}

	session := sessionID(c)
	content, err := s.predict(c.Request.Context(), session, sequence)
	if err != nil {
		s.notifier.Broadcast(session, ActionEvent{Type: "failed", Tab: string(viewer.TabPredict), Message: "API Error: " + err.Error()})
		s.renderError(c, upstreamStatus(err), fmt.Errorf("API Error: %w", err))
		return
	}

	view, err := s.saveView(session, viewer.TabPredict, structure.FormatPDB, content, func(v *store.View) {
		v.Sequence = sequence
		v.SequenceLength = len(sequence)
		v.FileName = viewer.DownloadName(viewer.TabPredict, structure.FormatPDB, "", "")
	})
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	s.notifyCompleted(session, view)
	c.JSON(http.StatusOK, FromView(*view))
}

// predict serves a fold from the persistent cache or the folding API.
func (s *Server) predict(ctx context.Context, session, sequence string) (string, error) {
	if cached, ok, err := s.db.GetPrediction(sequence); err != nil {
		logrus.WithError(err).Warn("read prediction cache")
	} else if ok {
		logrus.WithFields(logrus.Fields{
			"session":         session,
			"sequence_length": len(sequence),
		}).Info("prediction served from store")
		return cached, nil
	}

	s.notifier.Broadcast(session, ActionEvent{Type: "started", Tab: string(viewer.TabPredict), Message: "Predicting structure with ESMFold..."})
	timer := util.StartTimer()
	content, err := s.folder.Fold(ctx, sequence)
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"session":         session,
			"sequence_length": len(sequence),
			"duration_ms":     timer.ElapsedMs(),
		}).Warn("esmfold prediction failed")
		return "", err
	}
	if err := s.db.SavePrediction(sequence, content); err != nil {
		logrus.WithError(err).Warn("store prediction")
	}
	return content, nil
}

func (s *Server) handleUpload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			s.renderError(c, http.StatusBadRequest, errors.New("structure file is required"))
		} else {
			s.renderError(c, http.StatusBadRequest, err)
		}
		return
	}

	format, err := structure.FormatFromFilename(fileHeader.Filename)
	if err != nil {
		s.renderError(c, http.StatusBadRequest, errors.New("structure file must have a .pdb or .cif extension"))
		return
	}
	if fileHeader.Size > s.maxUploadBytes {
		s.renderError(c, http.StatusRequestEntityTooLarge, fmt.Errorf("file exceeds %d bytes", s.maxUploadBytes))
		return
	}

	content, err := readFormFile(fileHeader, s.maxUploadBytes)
	if err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}

	session := sessionID(c)
	view, err := s.saveView(session, viewer.TabUpload, format, content, func(v *store.View) {
		v.FileName = viewer.DownloadName(viewer.TabUpload, format, fileHeader.Filename, "")
	})
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	logrus.WithFields(logrus.Fields{
		"session": session,
		"file":    fileHeader.Filename,
		"format":  format,
		"bytes":   fileHeader.Size,
	}).Info("structure uploaded")
	c.JSON(http.StatusOK, FromView(*view))
}

func readFormFile(header *multipart.FileHeader, limit int64) (string, error) {
	src, err := header.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	data, err := io.ReadAll(io.LimitReader(src, limit+1))
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > limit {
		return "", fmt.Errorf("file exceeds %d bytes", limit)
	}
	if !utf8.Valid(data) {
		return "", errors.New("structure file must be UTF-8 text")
	}
	return string(data), nil
}

func (s *Server) handleFetch(c *gin.Context) {
	var req FetchRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}
	raw := strings.TrimSpace(req.UniProtID)
	if raw == "" {
		s.renderError(c, http.StatusBadRequest, errors.New("Please enter a UniProt ID."))
		return
	}
	failure := fmt.Errorf("Failed to fetch structure for %s. Please check the UniProt ID and try again.", raw)

	accession, err := afdb.NormalizeAccession(raw)
	if err != nil {
		s.renderError(c, http.StatusBadRequest, failure)
		return
	}

	session := sessionID(c)
	s.notifier.Broadcast(session, ActionEvent{Type: "started", Tab: string(viewer.TabAFDB), Message: "Fetching " + accession + " from AlphaFold DB..."})
	content, err := s.afdb.Fetch(c.Request.Context(), accession, structure.FormatCIF)
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"session":   session,
			"accession": accession,
		}).Warn("alphafold db fetch failed")
		s.notifier.Broadcast(session, ActionEvent{Type: "failed", Tab: string(viewer.TabAFDB), Message: failure.Error()})
		s.renderError(c, upstreamStatus(err), failure)
		return
	}

	view, err := s.saveView(session, viewer.TabAFDB, structure.FormatCIF, content, func(v *store.View) {
		v.Accession = accession
		v.FileName = viewer.DownloadName(viewer.TabAFDB, structure.FormatCIF, "", s.afdb.FileName(accession, structure.FormatCIF))
	})
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	s.notifyCompleted(session, view)
	c.JSON(http.StatusOK, FromView(*view))
}

// saveView computes the metric and widget key for content and stores it as
// the session's view for tab.
func (s *Server) saveView(session string, tab viewer.Tab, format structure.Format, content string, fill func(*store.View)) (*store.View, error) {
	view := &store.View{
		SessionID: session,
		Tab:       string(tab),
		Format:    string(format),
		Content:   content,
		ViewerKey: viewer.Key(tab, content, format),
	}
	if score, ok := structure.AveragePLDDT(content, format); ok {
		view.PLDDT = &score
	}
	if fill != nil {
		fill(view)
	}
	if err := s.db.SaveView(view); err != nil {
		return nil, fmt.Errorf("save view: %w", err)
	}
	return view, nil
}

func (s *Server) notifyCompleted(session string, view *store.View) {
	s.notifier.Broadcast(session, ActionEvent{
		Type:      "completed",
		Tab:       view.Tab,
		ViewerKey: view.ViewerKey,
		PLDDT:     view.PLDDT,
	})
}

func (s *Server) handleListViews(c *gin.Context) {
	views, err := s.db.ListViews(sessionID(c))
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	dtos := make([]StructureDTO, 0, len(views))
	for _, v := range views {
		dtos = append(dtos, FromView(v))
	}
	c.JSON(http.StatusOK, ViewsResponse{Items: dtos})
}

// loadView resolves the :tab parameter and the session's view for it,
// rendering the error response itself when either is missing.
func (s *Server) loadView(c *gin.Context) (*store.View, bool) {
	tab, err := viewer.ParseTab(c.Param("tab"))
	if err != nil {
		s.renderError(c, http.StatusNotFound, err)
		return nil, false
	}
	view, err := s.db.GetView(sessionID(c), string(tab))
	if err != nil {
		if errors.Is(err, store.ErrNoView) {
			s.renderError(c, http.StatusNotFound, err)
		} else {
			s.renderError(c, http.StatusInternalServerError, err)
		}
		return nil, false
	}
	return view, true
}

func (s *Server) handleGetView(c *gin.Context) {
	view, ok := s.loadView(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, FromView(*view))
}

func (s *Server) handleDownload(c *gin.Context) {
	view, ok := s.loadView(c)
	if !ok {
		return
	}
	format := structure.Format(view.Format)
	name := view.FileName
	if name == "" {
		name = viewer.DownloadName(viewer.Tab(view.Tab), format, "", "")
	}
	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	c.Data(http.StatusOK, format.MIMEType(), []byte(view.Content))
}

func (s *Server) handlePLDDTPlot(c *gin.Context) {
	view, ok := s.loadView(c)
	if !ok {
		return
	}
	parsed, err := structure.Parse(view.Content, structure.Format(view.Format))
	if err != nil {
		s.renderError(c, http.StatusUnprocessableEntity, err)
		return
	}
	svg, err := structure.PlotResidueConfidence(parsed.ResidueConfidence())
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	c.Data(http.StatusOK, "image/svg+xml", svg)
}

func (s *Server) handleClearView(c *gin.Context) {
	tab, err := viewer.ParseTab(c.Param("tab"))
	if err != nil {
		s.renderError(c, http.StatusNotFound, err)
		return
	}
	session := sessionID(c)
	if err := s.db.ClearView(session, string(tab)); err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	s.notifier.Forget(session, string(tab))
	c.Status(http.StatusNoContent)
}

func (s *Server) handleEvents(c *gin.Context) {
	upgrader := websocket.Upgrader{
		HandshakeTimeout:  5 * time.Second,
		EnableCompression: true,
		CheckOrigin: func(r *http.Request) bool {
			if len(s.allowedOrigins) == 0 {
				return true
			}
			origin := strings.TrimSpace(r.Header.Get("Origin"))
			for _, allowed := range s.allowedOrigins {
				if strings.EqualFold(origin, allowed) {
					return true
				}
			}
			return false
		},
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithError(err).Warn("upgrade websocket")
		return
	}

	client := s.notifier.Register(sessionID(c), conn)
	defer s.notifier.Unregister(client)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logrus.WithError(err).Warn("events websocket unexpected close")
			}
			break
		}
	}
}

// upstreamStatus maps client errors from the folding API or structure
// database to a response status.
func upstreamStatus(err error) int {
	switch {
	case errors.Is(err, afdb.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func (s *Server) renderError(c *gin.Context, status int, err error) {
	c.JSON(status, gin.H{"error": err.Error()})
}
