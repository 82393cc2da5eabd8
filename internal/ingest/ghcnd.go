package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/textproto"
	"time"

	"github.com/jlaffaye/ftp"

	"github.com/AdrienSalicis/WindDatas/internal/models"
)

const (
	ghcndFTPAddr  = "ftp.ncei.noaa.gov:21"
	ghcndDailyDir = "/pub/data/ghcn/daily/all"
)

// Retriever reads one file from a remote archive.
type Retriever interface {
	Retrieve(ctx context.Context, path string) ([]byte, error)
}

// FTPRetriever fetches files over anonymous FTP.
type FTPRetriever struct {
	Addr    string
	Timeout time.Duration
}

func (r FTPRetriever) Retrieve(ctx context.Context, path string) ([]byte, error) {
	conn, err := ftp.Dial(r.Addr, ftp.DialWithContext(ctx), ftp.DialWithTimeout(r.Timeout))
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", r.Addr, err)
	}
	defer conn.Quit()

	if err := conn.Login("anonymous", "anonymous"); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	resp, err := conn.Retr(path)
	if err != nil {
		var tpErr *textproto.Error
		if errors.As(err, &tpErr) && tpErr.Code == ftp.StatusFileUnavailable {
			return nil, ErrNoData
		}
		return nil, fmt.Errorf("retr %s: %w", path, err)
	}
	defer resp.Close()

	return io.ReadAll(resp)
}

// GHCND downloads the per-station .dly file holding the station's full
// daily history. The pipeline clips it to the requested window.
type GHCND struct {
	Retriever Retriever
}

func NewGHCND() *GHCND {
	return &GHCND{Retriever: FTPRetriever{Addr: ghcndFTPAddr, Timeout: time.Minute}}
}

func (f *GHCND) Provider() models.Provider { return models.ProviderGHCND }

func (f *GHCND) Chunks(req Request) []Request { return singleChunk(req) }

func (f *GHCND) FetchChunk(ctx context.Context, req Request) (*Payload, error) {
	if err := requireStation(f.Provider(), req); err != nil {
		return nil, err
	}
	path := fmt.Sprintf("%s/%s.dly", ghcndDailyDir, req.Station.ID)
	body, err := f.Retriever.Retrieve(ctx, path)
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, ErrNoData
	}
	return &Payload{Endpoint: path, Body: body}, nil
}
