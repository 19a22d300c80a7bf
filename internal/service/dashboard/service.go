package dashboard

import (
	"context"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ignite/leadfunnel/internal/domain"
	"github.com/ignite/leadfunnel/internal/pkg/logger"
)

// DefaultExt is used for uploads whose original name has no extension.
const DefaultExt = ".pdf"

// Stats are the summary cards above the tables.
type Stats struct {
	TotalSubscribers int `json:"total_subscribers"`
	MarketingAgreed  int `json:"marketing_agreed"`
	MarketingRate    int `json:"marketing_rate"`
	TotalClicks      int `json:"total_clicks"`
}

// ComputeStats derives the summary cards from the loaded rows. MarketingRate
// is round(100 * agreed / total) and 0 when there are no subscribers.
func ComputeStats(subs []domain.Subscriber, clicks []domain.PaymentClick) Stats {
	st := Stats{TotalSubscribers: len(subs), TotalClicks: len(clicks)}
	for _, s := range subs {
		if s.MarketingAgreed {
			st.MarketingAgreed++
		}
	}
	if st.TotalSubscribers > 0 {
		st.MarketingRate = int(math.Round(100 * float64(st.MarketingAgreed) / float64(st.TotalSubscribers)))
	}
	return st
}

// Dashboard is one snapshot of the tables. SubscribersErr and ClicksErr are
// set when the matching read failed; the slice is then empty.
type Dashboard struct {
	Subscribers    []domain.Subscriber   `json:"subscribers"`
	Clicks         []domain.PaymentClick `json:"clicks"`
	Stats          Stats                 `json:"stats"`
	SubscribersErr error                 `json:"-"`
	ClicksErr      error                 `json:"-"`
}

// FileEntry pairs a listed object with its own URL derivation error, so one
// bad entry never blanks the listing.
type FileEntry struct {
	domain.StoredFile
	Err error `json:"-"`
}

// Upload is a file chosen in the dashboard.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Service implements dashboard reads and bucket actions. It is safe for
// concurrent use.
type Service struct {
	subscribers SubscriberReader
	clicks      ClickReader
	files       FileStore
	prefix      string
	maxRows     int
	concurrency int
	now         func() time.Time
	log         *logger.Logger
}

// Config holds the dashboard knobs.
type Config struct {
	UploadPrefix    string
	MaxRows         int
	ListConcurrency int
}

// NewService creates a dashboard service.
func NewService(subs SubscriberReader, clicks ClickReader, files FileStore, cfg Config) *Service {
	if cfg.ListConcurrency <= 0 {
		cfg.ListConcurrency = 8
	}
	return &Service{
		subscribers: subs,
		clicks:      clicks,
		files:       files,
		prefix:      cfg.UploadPrefix,
		maxRows:     cfg.MaxRows,
		concurrency: cfg.ListConcurrency,
		now:         time.Now,
		log:         logger.Named("dashboard"),
	}
}

// Load reads subscribers and clicks concurrently. Each read fails on its
// own and leaves an empty table behind.
func (s *Service) Load(ctx context.Context) Dashboard {
	var (
		d  Dashboard
		wg sync.WaitGroup
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		d.Subscribers, d.SubscribersErr = s.subscribers.ListRecent(ctx, s.maxRows)
		if d.SubscribersErr != nil {
			s.log.Error("list subscribers failed", "error", d.SubscribersErr)
			d.Subscribers = nil
		}
	}()
	go func() {
		defer wg.Done()
		d.Clicks, d.ClicksErr = s.clicks.ListRecent(ctx, s.maxRows)
		if d.ClicksErr != nil {
			s.log.Error("list payment clicks failed", "error", d.ClicksErr)
			d.Clicks = nil
		}
	}()
	wg.Wait()

	if d.Subscribers == nil {
		d.Subscribers = []domain.Subscriber{}
	}
	if d.Clicks == nil {
		d.Clicks = []domain.PaymentClick{}
	}
	d.Stats = ComputeStats(d.Subscribers, d.Clicks)
	return d
}

// ListFiles lists the bucket and derives each public URL concurrently, at
// most ListConcurrency at a time. Only a failed listing is returned as an
// error; URL failures stay on their entry. Entries are newest first.
func (s *Service) ListFiles(ctx context.Context) ([]FileEntry, error) {
	objects, err := s.files.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}

	entries := make([]FileEntry, len(objects))
	g := new(errgroup.Group)
	g.SetLimit(s.concurrency)
	for i, obj := range objects {
		i, obj := i, obj
		g.Go(func() error {
			entries[i].StoredFile = obj
			url, err := s.files.PublicURL(ctx, obj.Name)
			if err != nil {
				entries[i].Err = err
				s.log.Warn("public url failed", "file", obj.Name, "error", err)
				return nil
			}
			entries[i].URL = url
			return nil
		})
	}
	_ = g.Wait()

	sort.SliceStable(entries, func(a, b int) bool {
		if entries[a].CreatedAt.Equal(entries[b].CreatedAt) {
			return entries[a].Name > entries[b].Name
		}
		return entries[a].CreatedAt.After(entries[b].CreatedAt)
	})
	return entries, nil
}

// ObjectName builds "<prefix><unix millis><ext>" for an upload. The
// extension comes from the original name, lowercased, defaulting to .pdf.
func (s *Service) ObjectName(original string) string {
	ext := strings.ToLower(filepath.Ext(original))
	if ext == "" || ext == "." || strings.ContainsAny(ext, `/\`) {
		ext = DefaultExt
	}
	return fmt.Sprintf("%s%d%s", s.prefix, s.now().UnixMilli(), ext)
}

// Upload stores the file under a generated name and returns the stored
// object with a refreshed listing.
func (s *Service) Upload(ctx context.Context, up Upload) (domain.StoredFile, []FileEntry, error) {
	if up.Body == nil || up.Size == 0 || up.Filename == "" {
		return domain.StoredFile{}, nil, ErrNoFile
	}
	name := s.ObjectName(up.Filename)
	contentType := up.ContentType
	if contentType == "" {
		contentType = "application/pdf"
	}

	stored, err := s.files.Upload(ctx, name, up.Body, up.Size, contentType)
	if err != nil {
		return domain.StoredFile{}, nil, fmt.Errorf("upload %s: %w", name, err)
	}
	s.log.Info("file uploaded", "file", name, "size", up.Size)

	entries, err := s.ListFiles(ctx)
	return stored, entries, err
}

// Delete removes the named object and returns a refreshed listing.
func (s *Service) Delete(ctx context.Context, name string) ([]FileEntry, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrInvalidName
	}
	if err := s.files.Delete(ctx, name); err != nil {
		return nil, fmt.Errorf("delete %s: %w", name, err)
	}
	s.log.Info("file deleted", "file", name)
	return s.ListFiles(ctx)
}
