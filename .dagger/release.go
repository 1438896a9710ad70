package main

import (
	"context"
	"fmt"
	"path"

	"dagger/weave/internal/dagger"
)

// bucket holds the credentials of the S3-compatible release bucket.
type bucket struct {
	endpoint        *dagger.Secret
	name            *dagger.Secret
	accessKeyId     *dagger.Secret
	secretAccessKey *dagger.Secret
}

// Package flattens the os/arch build tree into weave-<os>-<arch> binaries
// next to a SHA256SUMS file, the layout install scripts download from.
func (w *Weave) Package(
	ctx context.Context,

	// Version string of build
	version string,

	// Git commit SHA of build
	commit string,
) *dagger.Directory {
	builds := w.BuildRelease(ctx, version, commit)

	packager := dag.Container().
		From("alpine:3.20").
		WithDirectory("/builds", builds).
		WithWorkdir("/dist").
		WithExec([]string{"sh", "-c", `
for bin in /builds/*/*/weave; do
	arch=$(basename "$(dirname "$bin")")
	os=$(basename "$(dirname "$(dirname "$bin")")")
	cp "$bin" "weave-$os-$arch"
done
sha256sum weave-* > SHA256SUMS
`})

	return packager.Directory("/dist")
}

// publish syncs the packaged artifacts under each prefix of the bucket.
func (w *Weave) publish(
	ctx context.Context,
	artifacts *dagger.Directory,
	b bucket,
	prefixes ...string,
) error {
	bucketName, err := b.name.Plaintext(ctx)
	if err != nil {
		return fmt.Errorf("failed to get bucket name: %w", err)
	}

	endpointUrl, err := b.endpoint.Plaintext(ctx)
	if err != nil {
		return fmt.Errorf("failed to get endpoint: %w", err)
	}

	awsCli := dag.Container().
		From("amazon/aws-cli:latest").
		WithSecretVariable("AWS_ACCESS_KEY_ID", b.accessKeyId).
		WithSecretVariable("AWS_SECRET_ACCESS_KEY", b.secretAccessKey).
		WithEnvVariable("AWS_DEFAULT_REGION", "auto").
		WithDirectory("/artifacts", artifacts).
		WithWorkdir("/artifacts")

	for _, prefix := range prefixes {
		destination := fmt.Sprintf("s3://%s", path.Join(bucketName, prefix))

		// SHA256SUMS goes last so a reader never sees sums for missing binaries.
		_, err = awsCli.
			WithExec([]string{
				"aws", "s3", "sync", ".", destination,
				"--endpoint-url", endpointUrl,
				"--exclude", "SHA256SUMS",
			}).
			WithExec([]string{
				"aws", "s3", "cp", "SHA256SUMS", destination + "/SHA256SUMS",
				"--endpoint-url", endpointUrl,
			}).
			Sync(ctx)
		if err != nil {
			return fmt.Errorf("failed to upload artifacts to %s: %w", prefix, err)
		}
	}

	return nil
}

// ReleaseLatest packages a versioned release and publishes it under the
// version and under "latest"
func (w *Weave) ReleaseLatest(
	ctx context.Context,

	// Version string (e.g., "v1.0.0")
	version string,

	// Git commit SHA
	commit string,

	// Bucket endpoint URL
	endpoint *dagger.Secret,

	// Bucket name
	bucketName *dagger.Secret,

	// Bucket access key ID
	accessKeyId *dagger.Secret,

	// Bucket secret access key
	secretAccessKey *dagger.Secret,
) (*dagger.Directory, error) {
	artifacts := w.Package(ctx, version, commit)
	b := bucket{endpoint: endpoint, name: bucketName, accessKeyId: accessKeyId, secretAccessKey: secretAccessKey}

	if err := w.publish(ctx, artifacts, b, version, "latest"); err != nil {
		return artifacts, fmt.Errorf("could not publish release %s: %w", version, err)
	}

	return artifacts, nil
}

// Nightly packages the current commit and publishes it under "nightly"
func (w *Weave) Nightly(
	ctx context.Context,

	// Git commit SHA
	commit string,

	// Bucket endpoint URL
	endpoint *dagger.Secret,

	// Bucket name
	bucketName *dagger.Secret,

	// Bucket access key ID
	accessKeyId *dagger.Secret,

	// Bucket secret access key
	secretAccessKey *dagger.Secret,
) (*dagger.Directory, error) {
	artifacts := w.Package(ctx, "nightly", commit)
	b := bucket{endpoint: endpoint, name: bucketName, accessKeyId: accessKeyId, secretAccessKey: secretAccessKey}

	return artifacts, w.publish(ctx, artifacts, b, "nightly")
}
