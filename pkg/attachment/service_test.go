package attachment

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/casefiles/pkg/cache"
)

// fakeBlobStore keeps blobs in a map and can be told to fail each operation.
type fakeBlobStore struct {
	mu         sync.Mutex
	objects    map[string][]byte
	failPut    error
	failRemove error
	failSign   error
	signCalls  int
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{objects: make(map[string][]byte)}
}

func (f *fakeBlobStore) Put(_ context.Context, path string, r io.Reader, _ int64, _ string) error {
	if f.failPut != nil {
		return f.failPut
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.objects[path] = data
	f.mu.Unlock()
	return nil
}

func (f *fakeBlobStore) Remove(_ context.Context, paths ...string) error {
	if f.failRemove != nil {
		return f.failRemove
	}
	f.mu.Lock()
	for _, p := range paths {
		delete(f.objects, p) // absent keys are fine, removal is idempotent
	}
	f.mu.Unlock()
	return nil
}

func (f *fakeBlobStore) SignedURL(_ context.Context, path string, _ time.Duration, downloadName string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signCalls++
	if f.failSign != nil {
		return "", f.failSign
	}
	if _, ok := f.objects[path]; !ok {
		return "", fmt.Errorf("no object at %s", path)
	}
	return "https://blobs.test/" + path + "?name=" + downloadName, nil
}

func (f *fakeBlobStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.objects)
}

func (f *fakeBlobStore) has(path string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.objects[path]
	return ok
}

// fakeMetaStore keeps rows in a slice, stamping increasing created_at values.
type fakeMetaStore struct {
	mu          sync.Mutex
	rows        []Attachment
	seq         int
	base        time.Time
	failCount   error
	failDelete  error
	insertErrAt int // fail the n-th insert (1-based), 0 = never
	inserts     int
}

func newFakeMetaStore() *fakeMetaStore {
	return &fakeMetaStore{base: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)}
}

func (f *fakeMetaStore) CountByCase(_ context.Context, caseID string) (int, error) {
	if f.failCount != nil {
		return 0, f.failCount
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.rows {
		if r.CaseID == caseID {
			n++
		}
	}
	return n, nil
}

func (f *fakeMetaStore) Insert(_ context.Context, a Attachment) (Attachment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inserts++
	if f.insertErrAt != 0 && f.inserts >= f.insertErrAt {
		return Attachment{}, fmt.Errorf("insert refused")
	}
	f.seq++
	a.CreatedAt = f.base.Add(time.Duration(f.seq) * time.Second)
	f.rows = append(f.rows, a)
	return a, nil
}

func (f *fakeMetaStore) ListByCase(_ context.Context, caseID string) ([]Attachment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Attachment
	for _, r := range f.rows {
		if r.CaseID == caseID {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (f *fakeMetaStore) GetByID(_ context.Context, id uuid.UUID) (Attachment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.ID == id {
			return r, nil
		}
	}
	return Attachment{}, ErrNotFound
}

func (f *fakeMetaStore) Delete(_ context.Context, id uuid.UUID) error {
	if f.failDelete != nil {
		return f.failDelete
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, r := range f.rows {
		if r.ID == id {
			f.rows = append(f.rows[:i], f.rows[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (f *fakeMetaStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

// seed inserts a row directly, bypassing the orchestrator.
func (f *fakeMetaStore) seed(caseID, filename string) Attachment {
	a := Attachment{
		ID:                uuid.New(),
		CaseID:            caseID,
		OriginalFilename:  filename,
		SanitizedFilename: SanitizeFilename(filename),
		FileSize:          1024,
		MimeType:          MIMEOctetStream,
		CreatedBy:         "user-1",
	}
	a.StoragePath = StorageKey(DefaultKeyNamespace, caseID, a.ID.String(), a.SanitizedFilename)
	f.mu.Lock()
	f.seq++
	a.CreatedAt = f.base.Add(time.Duration(f.seq) * time.Second)
	f.rows = append(f.rows, a)
	f.mu.Unlock()
	return a
}

type staticIdentity string

func (s staticIdentity) CurrentUserID(context.Context) (string, error) {
	return string(s), nil
}

func newTestService(t *testing.T, cfg Config, opts ...Option) (*Service, *fakeBlobStore, *fakeMetaStore) {
	t.Helper()
	blobs := newFakeBlobStore()
	meta := newFakeMetaStore()
	svc, err := New(blobs, meta, staticIdentity("user-1"), cfg, opts...)
	require.NoError(t, err)
	return svc, blobs, meta
}

func pdfUpload(caseID, filename string, size int64) UploadInput {
	return UploadInput{
		CaseID:   caseID,
		Filename: filename,
		Content:  strings.NewReader("%PDF-1.7 test content"),
		Size:     size,
		MimeType: "application/pdf",
	}
}

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("defaults applied", func(t *testing.T) {
		t.Parallel()
		svc, _, _ := newTestService(t, Config{})
		require.Equal(t, DefaultMaxPerCase, svc.cfg.MaxPerCase)
		require.Equal(t, int64(DefaultMaxFileBytes), svc.cfg.MaxFileBytes)
		require.Equal(t, DefaultSignedURLTTL, svc.cfg.SignedURLTTL)
		require.Equal(t, DefaultKeyNamespace, svc.cfg.KeyNamespace)
	})

	t.Run("nil stores rejected", func(t *testing.T) {
		t.Parallel()
		_, err := New(nil, newFakeMetaStore(), staticIdentity("u"), Config{})
		require.ErrorIs(t, err, ErrInvalidConfig)
	})

	t.Run("negative limit rejected", func(t *testing.T) {
		t.Parallel()
		_, err := New(newFakeBlobStore(), newFakeMetaStore(), staticIdentity("u"), Config{MaxPerCase: -1})
		require.ErrorIs(t, err, ErrInvalidConfig)
	})
}

func TestServiceUpload(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("success stores blob and one row", func(t *testing.T) {
		t.Parallel()
		svc, blobs, meta := newTestService(t, Config{})

		att, err := svc.Upload(ctx, pdfUpload("case-1", "Q3 report.pdf", 2<<20))
		require.NoError(t, err)

		require.Equal(t, "case-1", att.CaseID)
		require.Equal(t, "Q3 report.pdf", att.OriginalFilename)
		require.Equal(t, "Q3_report.pdf", att.SanitizedFilename)
		require.Equal(t, "application/pdf", att.MimeType)
		require.Equal(t, "user-1", att.CreatedBy)
		require.Equal(t, StorageKey(DefaultKeyNamespace, "case-1", att.ID.String(), "Q3_report.pdf"), att.StoragePath)
		require.False(t, att.CreatedAt.IsZero())

		require.Equal(t, 1, blobs.count())
		require.True(t, blobs.has(att.StoragePath))
		require.Equal(t, 1, meta.count())
	})

	t.Run("missing declared mime defaults to octet-stream", func(t *testing.T) {
		t.Parallel()
		svc, _, _ := newTestService(t, Config{})

		att, err := svc.Upload(ctx, UploadInput{
			CaseID:   "case-1",
			Filename: "notes.txt",
			Content:  strings.NewReader("hello"),
			Size:     5,
		})
		require.NoError(t, err)
		require.Equal(t, MIMEOctetStream, att.MimeType)
	})

	t.Run("validation failure blocks before any store call", func(t *testing.T) {
		t.Parallel()
		svc, blobs, meta := newTestService(t, Config{})

		_, err := svc.Upload(ctx, pdfUpload("case-1", "big.pdf", 30<<20))
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		require.Len(t, verr.Errors, 1)
		require.Zero(t, blobs.count())
		require.Zero(t, meta.count())
	})

	t.Run("blob write failure aborts cleanly", func(t *testing.T) {
		t.Parallel()
		svc, blobs, meta := newTestService(t, Config{})
		blobs.failPut = fmt.Errorf("bucket unavailable")

		_, err := svc.Upload(ctx, pdfUpload("case-1", "report.pdf", 1024))
		require.ErrorIs(t, err, ErrStorageWrite)
		require.Zero(t, blobs.count())
		require.Zero(t, meta.count())
	})

	t.Run("metadata insert failure triggers compensating delete", func(t *testing.T) {
		t.Parallel()
		svc, blobs, meta := newTestService(t, Config{})
		meta.insertErrAt = 1

		_, err := svc.Upload(ctx, pdfUpload("case-1", "report.pdf", 1024))
		require.ErrorIs(t, err, ErrMetadataWrite)

		// Neither store holds anything after compensation.
		require.Zero(t, meta.count())
		require.Zero(t, blobs.count())
	})

	t.Run("failed compensation leaves orphan and logs it", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		log := slog.New(slog.NewTextHandler(&buf, nil))

		blobs := newFakeBlobStore()
		meta := newFakeMetaStore()
		svc, err := New(blobs, meta, staticIdentity("user-1"), Config{}, WithLogger(log))
		require.NoError(t, err)

		meta.insertErrAt = 1
		blobs.failRemove = fmt.Errorf("remove refused")

		_, err = svc.Upload(ctx, pdfUpload("case-1", "report.pdf", 1024))
		require.ErrorIs(t, err, ErrMetadataWrite)

		// The orphaned blob survives and the failure is logged for manual
		// cleanup, never retried.
		require.Equal(t, 1, blobs.count())
		require.Zero(t, meta.count())
		require.Contains(t, buf.String(), "orphaned blob")
	})
}

func TestServiceUploadBatch(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("all files committed", func(t *testing.T) {
		t.Parallel()
		svc, blobs, meta := newTestService(t, Config{})

		uploaded, err := svc.UploadBatch(ctx, "case-1", []UploadInput{
			pdfUpload("case-1", "a.pdf", 100),
			pdfUpload("case-1", "b.pdf", 200),
			pdfUpload("case-1", "c.pdf", 300),
		})
		require.NoError(t, err)
		require.Len(t, uploaded, 3)
		require.Equal(t, 3, blobs.count())
		require.Equal(t, 3, meta.count())
	})

	t.Run("strict prefix on mid-batch failure", func(t *testing.T) {
		t.Parallel()
		svc, blobs, meta := newTestService(t, Config{})
		meta.insertErrAt = 2 // file 2's insert fails

		uploaded, err := svc.UploadBatch(ctx, "case-1", []UploadInput{
			pdfUpload("case-1", "a.pdf", 100),
			pdfUpload("case-1", "b.pdf", 200),
			pdfUpload("case-1", "c.pdf", 300),
		})
		require.ErrorIs(t, err, ErrMetadataWrite)

		// File 1 stays committed, file 2 was compensated, file 3 never ran.
		require.Len(t, uploaded, 1)
		require.Equal(t, "a.pdf", uploaded[0].OriginalFilename)
		require.Equal(t, 1, blobs.count())
		require.Equal(t, 1, meta.count())
	})

	t.Run("invalid batch commits nothing", func(t *testing.T) {
		t.Parallel()
		svc, blobs, meta := newTestService(t, Config{})

		_, err := svc.UploadBatch(ctx, "case-1", []UploadInput{
			pdfUpload("case-1", "a.pdf", 100),
			pdfUpload("case-1", "malware.exe", 100),
		})
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		require.Zero(t, blobs.count())
		require.Zero(t, meta.count())
	})
}

func TestServiceDelete(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	upload := func(t *testing.T, svc *Service) Attachment {
		t.Helper()
		att, err := svc.Upload(ctx, pdfUpload("case-1", "report.pdf", 1024))
		require.NoError(t, err)
		return att
	}

	t.Run("removes blob and row", func(t *testing.T) {
		t.Parallel()
		svc, blobs, meta := newTestService(t, Config{})
		att := upload(t, svc)

		require.NoError(t, svc.Delete(ctx, att.ID))
		require.Zero(t, blobs.count())
		require.Zero(t, meta.count())
	})

	t.Run("unknown id is not found and changes nothing", func(t *testing.T) {
		t.Parallel()
		svc, blobs, meta := newTestService(t, Config{})
		upload(t, svc)

		err := svc.Delete(ctx, uuid.New())
		require.ErrorIs(t, err, ErrNotFound)
		require.Equal(t, 1, blobs.count())
		require.Equal(t, 1, meta.count())
	})

	t.Run("blob removal failure keeps metadata for retry", func(t *testing.T) {
		t.Parallel()
		svc, blobs, meta := newTestService(t, Config{})
		att := upload(t, svc)
		blobs.failRemove = fmt.Errorf("remove refused")

		err := svc.Delete(ctx, att.ID)
		require.ErrorIs(t, err, ErrStorageDelete)
		require.Equal(t, 1, meta.count())

		// Retry succeeds once the blob store recovers.
		blobs.failRemove = nil
		require.NoError(t, svc.Delete(ctx, att.ID))
		require.Zero(t, blobs.count())
		require.Zero(t, meta.count())
	})

	t.Run("metadata removal failure surfaces dangling row", func(t *testing.T) {
		t.Parallel()
		svc, blobs, meta := newTestService(t, Config{})
		att := upload(t, svc)
		meta.failDelete = fmt.Errorf("delete refused")

		err := svc.Delete(ctx, att.ID)
		require.ErrorIs(t, err, ErrMetadataDelete)

		// The blob is gone but the row remains, as documented.
		require.Zero(t, blobs.count())
		require.Equal(t, 1, meta.count())
	})

	t.Run("row vanished mid-delete counts as deleted", func(t *testing.T) {
		t.Parallel()
		svc, _, meta := newTestService(t, Config{})
		att := upload(t, svc)
		meta.failDelete = ErrNotFound

		require.NoError(t, svc.Delete(ctx, att.ID))
	})
}

func TestServiceList(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	svc, _, meta := newTestService(t, Config{})
	first := meta.seed("case-1", "first.pdf")
	second := meta.seed("case-1", "second.pdf")
	meta.seed("case-2", "other.pdf")
	third := meta.seed("case-1", "third.pdf")

	got, err := svc.List(ctx, "case-1")
	require.NoError(t, err)
	require.Len(t, got, 3)

	// Newest first.
	require.Equal(t, third.ID, got[0].ID)
	require.Equal(t, second.ID, got[1].ID)
	require.Equal(t, first.ID, got[2].ID)
	for i := 1; i < len(got); i++ {
		require.False(t, got[i].CreatedAt.After(got[i-1].CreatedAt))
	}
}

func TestServiceDownloadURL(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("unknown id", func(t *testing.T) {
		t.Parallel()
		svc, _, _ := newTestService(t, Config{})
		_, err := svc.DownloadURL(ctx, uuid.New(), "")
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("defaults to original filename", func(t *testing.T) {
		t.Parallel()
		svc, _, _ := newTestService(t, Config{})
		att, err := svc.Upload(ctx, pdfUpload("case-1", "report.pdf", 1024))
		require.NoError(t, err)

		url, err := svc.DownloadURL(ctx, att.ID, "")
		require.NoError(t, err)
		require.Contains(t, url, att.StoragePath)
		require.Contains(t, url, "name=report.pdf")
	})

	t.Run("cache serves repeat requests", func(t *testing.T) {
		t.Parallel()
		urls := cache.NewMemory[string]()
		blobs := newFakeBlobStore()
		meta := newFakeMetaStore()
		svc, err := New(blobs, meta, staticIdentity("user-1"), Config{}, WithURLCache(urls))
		require.NoError(t, err)

		att, err := svc.Upload(ctx, pdfUpload("case-1", "report.pdf", 1024))
		require.NoError(t, err)

		a, err := svc.DownloadURL(ctx, att.ID, "")
		require.NoError(t, err)
		b, err := svc.DownloadURL(ctx, att.ID, "")
		require.NoError(t, err)
		require.Equal(t, a, b)
		require.Equal(t, 1, blobs.signCalls)

		// A custom save-as name bypasses the cache.
		c, err := svc.DownloadURL(ctx, att.ID, "evidence.pdf")
		require.NoError(t, err)
		require.Contains(t, c, "name=evidence.pdf")
		require.Equal(t, 2, blobs.signCalls)

		// Deletion drops the cached entry.
		require.NoError(t, svc.Delete(ctx, att.ID))
		_, err = urls.Get(ctx, att.StoragePath)
		require.ErrorIs(t, err, cache.ErrNotFound)
	})
}

func TestServiceQuotaEndToEnd(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	svc, _, meta := newTestService(t, Config{})

	// Case starts with 9 attachments.
	for i := 0; i < 9; i++ {
		meta.seed("case-C", fmt.Sprintf("existing-%d.pdf", i))
	}

	// The 10th upload succeeds and lands first in the listing.
	tenth, err := svc.Upload(ctx, pdfUpload("case-C", "F.pdf", 2<<20))
	require.NoError(t, err)

	listed, err := svc.List(ctx, "case-C")
	require.NoError(t, err)
	require.Len(t, listed, 10)
	require.Equal(t, tenth.ID, listed[0].ID)

	// The 11th fails with the aggregate quota error.
	_, err = svc.Upload(ctx, pdfUpload("case-C", "G.pdf", 2<<20))
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t,
		[]string{"Cannot upload 1 files. Maximum 10 files per case (currently 10)."},
		verr.Errors,
	)
	require.Equal(t, 10, meta.count())
}
