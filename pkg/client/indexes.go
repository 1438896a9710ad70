package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"

	"github.com/docweave/weave/pkg/rag"
)

// Indexes lists the indexes visible to the caller.
func (c *Client) Indexes(ctx context.Context) ([]rag.Index, error) {
	var list rag.IndexList
	if err := c.roundTrip(ctx, http.MethodGet, c.endpoint("/indexes", nil), nil, &list); err != nil {
		return nil, err
	}
	return list.Indexes, nil
}

// CreateIndex creates an index.
func (c *Client) CreateIndex(ctx context.Context, name string) (rag.OperationResult, error) {
	if err := ValidateIndexName(name); err != nil {
		return rag.OperationResult{}, err
	}

	var res rag.OperationResult
	err := c.roundTrip(ctx, http.MethodPost, c.endpoint("/indexes", nil), rag.CreateIndexRequest{
		Name:         name,
		IsRestricted: c.restricted,
	}, &res)
	return res, err
}

// DeleteIndex deletes an index with all of its files. The backend answers a
// partial failure with 207 and a list of errors.
func (c *Client) DeleteIndex(ctx context.Context, name string) (rag.OperationResult, error) {
	var res rag.OperationResult
	err := c.roundTrip(ctx, http.MethodDelete, c.indexEndpoint(name, ""), nil, &res)
	if err == nil && len(res.Errors) > 0 {
		return res, fmt.Errorf("index %s partially deleted: %d errors", name, len(res.Errors))
	}
	return res, err
}

// Files lists the files uploaded to an index.
func (c *Client) Files(ctx context.Context, index string) (rag.FileList, error) {
	var files rag.FileList
	err := c.roundTrip(ctx, http.MethodGet, c.indexEndpoint(index, "/files"), nil, &files)
	return files, err
}

// DeleteFile removes a file, and every page split from it, from an index.
func (c *Client) DeleteFile(ctx context.Context, index, filename string) (rag.OperationResult, error) {
	var res rag.OperationResult
	err := c.roundTrip(ctx, http.MethodDelete, c.indexEndpoint(index, "/files/"+url.PathEscape(filename)), nil, &res)
	return res, err
}

// Upload sends a document to an index. Multimodal uploads have their images
// described during ingestion.
func (c *Client) Upload(ctx context.Context, index, filename string, content io.Reader, multimodal bool) (rag.UploadResult, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return rag.UploadResult{}, fmt.Errorf("creating file part: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return rag.UploadResult{}, fmt.Errorf("reading %s: %w", filename, err)
	}
	if err := mw.WriteField("multimodal", strconv.FormatBool(multimodal)); err != nil {
		return rag.UploadResult{}, fmt.Errorf("writing multimodal field: %w", err)
	}
	if err := mw.Close(); err != nil {
		return rag.UploadResult{}, fmt.Errorf("closing multipart body: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.indexEndpoint(index, "/upload"), &body)
	if err != nil {
		return rag.UploadResult{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.do(req)
	if err != nil {
		return rag.UploadResult{}, err
	}
	defer resp.Body.Close()

	var res rag.UploadResult
	if err := decodeJSON(resp.Body, &res); err != nil {
		return rag.UploadResult{}, fmt.Errorf("decoding upload response: %w", err)
	}
	return res, nil
}

// StartIndexing queues an indexing job for the files of an index.
func (c *Client) StartIndexing(ctx context.Context, index string) (rag.IndexJob, error) {
	var job rag.IndexJob
	err := c.roundTrip(ctx, http.MethodPost, c.indexEndpoint(index, "/index"), struct{}{}, &job)
	return job, err
}

// IndexStatus reports the state of the latest indexing job of an index.
func (c *Client) IndexStatus(ctx context.Context, index string) (rag.IndexStatus, error) {
	var status rag.IndexStatus
	err := c.roundTrip(ctx, http.MethodGet, c.indexEndpoint(index, "/index/status"), nil, &status)
	return status, err
}

// PDF downloads a source document. The caller must close the returned body.
func (c *Client) PDF(ctx context.Context, index, document string) (io.ReadCloser, error) {
	target := c.endpoint("/pdf/"+url.PathEscape(index)+"/"+escapePath(document), c.restrictedQuery())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// Ask answers a batch of questions against one index, optionally limited to
// a single file.
func (c *Client) Ask(ctx context.Context, req rag.AskRequest) ([]rag.Answer, error) {
	if len(req.Questions) == 0 {
		return nil, fmt.Errorf("at least one question is required")
	}

	var res rag.AskResponse
	if err := c.roundTrip(ctx, http.MethodPost, c.endpoint("/ask", nil), req, &res); err != nil {
		return nil, err
	}
	return res.Answers, nil
}

// Config returns the backend's feature flags.
func (c *Client) Config(ctx context.Context) (rag.BackendConfig, error) {
	var cfg rag.BackendConfig
	err := c.roundTrip(ctx, http.MethodGet, c.endpoint("/config", nil), nil, &cfg)
	return cfg, err
}

func (c *Client) indexEndpoint(index, suffix string) string {
	return c.endpoint("/indexes/"+url.PathEscape(index)+suffix, c.restrictedQuery())
}
