package publish

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/go-containerregistry/pkg/authn"
	"github.com/google/go-containerregistry/pkg/name"
	v1 "github.com/google/go-containerregistry/pkg/v1"
	"github.com/google/go-containerregistry/pkg/v1/empty"
	"github.com/google/go-containerregistry/pkg/v1/mutate"
	"github.com/google/go-containerregistry/pkg/v1/remote"
	"github.com/google/go-containerregistry/pkg/v1/static"
	"github.com/google/go-containerregistry/pkg/v1/types"

	"github.com/felixgeelhaar/blueprint/internal/version"
)

const (
	// OCI media types for blueprint archives
	ArchiveLayerMediaType = "application/vnd.blueprint.archive.layer.v1+zip"
	ArchiveArtifactType   = "application/vnd.blueprint.archive.v1"

	annotationArtifactType = "org.opencontainers.image.artifactType"
	labelTitle             = "org.opencontainers.image.title"
	labelCreated           = "org.opencontainers.image.created"
	labelVersion           = "dev.blueprint.version"
)

// OCIOptions configures registry access.
type OCIOptions struct {
	// Reference is the full OCI reference (e.g., ghcr.io/org/shop-blueprint:v1)
	Reference string

	// Insecure allows plain-HTTP registries
	Insecure bool

	// Keychain provides authentication credentials
	Keychain authn.Keychain

	UserAgent string

	// Now stamps the image config. Defaults to time.Now.
	Now func() time.Time
}

func (o *OCIOptions) defaults() {
	if o.Keychain == nil {
		o.Keychain = authn.DefaultKeychain
	}
	if o.UserAgent == "" {
		o.UserAgent = "blueprint/" + version.Version
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

func (o OCIOptions) remoteOptions(ctx context.Context) []remote.Option {
	return []remote.Option{
		remote.WithContext(ctx),
		remote.WithAuthFromKeychain(o.Keychain),
		remote.WithUserAgent(o.UserAgent),
	}
}

func (o OCIOptions) parseReference() (name.Reference, error) {
	var nameOpts []name.Option
	if o.Insecure {
		nameOpts = append(nameOpts, name.Insecure)
	}
	return name.ParseReference(o.Reference, nameOpts...)
}

// OCIPublisher pushes archives as single-layer OCI artifacts.
type OCIPublisher struct {
	opts OCIOptions
}

// NewOCIPublisher creates an OCI publisher.
func NewOCIPublisher(opts OCIOptions) *OCIPublisher {
	opts.defaults()
	return &OCIPublisher{opts: opts}
}

func (p *OCIPublisher) Target() string { return "oci" }

// Publish pushes the archive and returns the pushed reference pinned to its
// digest.
func (p *OCIPublisher) Publish(ctx context.Context, filename string, archive []byte) (string, error) {
	ref, err := p.opts.parseReference()
	if err != nil {
		return "", WrapRegistryError(err, p.opts.Reference, "push")
	}

	img, err := artifactImage(filename, archive, p.opts.Now())
	if err != nil {
		return "", publishError(p.Target(), "failed to assemble artifact", err)
	}

	if err := remote.Write(ref, img, p.opts.remoteOptions(ctx)...); err != nil {
		return "", WrapRegistryError(err, p.opts.Reference, "push")
	}

	digest, err := img.Digest()
	if err != nil {
		return "", fmt.Errorf("failed to get digest: %w", err)
	}
	return ref.Context().Digest(digest.String()).String(), nil
}

func artifactImage(filename string, archive []byte, created time.Time) (v1.Image, error) {
	layer := static.NewLayer(archive, types.MediaType(ArchiveLayerMediaType))

	img, err := mutate.AppendLayers(empty.Image, layer)
	if err != nil {
		return nil, fmt.Errorf("failed to append layer: %w", err)
	}

	// Keep the DiffIDs of the appended layer.
	current, err := img.ConfigFile()
	if err != nil {
		return nil, fmt.Errorf("failed to get config: %w", err)
	}
	img, err = mutate.ConfigFile(img, &v1.ConfigFile{
		OS:           "linux",
		Architecture: "amd64",
		Config: v1.Config{
			Labels: map[string]string{
				labelTitle:   filename,
				labelCreated: created.UTC().Format(time.RFC3339),
				labelVersion: version.Version,
			},
		},
		RootFS: current.RootFS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set config: %w", err)
	}

	return mutate.Annotations(img, map[string]string{
		annotationArtifactType: ArchiveArtifactType,
	}).(v1.Image), nil
}

// Fetch downloads a blueprint archive pushed by OCIPublisher. It returns the
// archive and its original file name.
func Fetch(ctx context.Context, opts OCIOptions) ([]byte, string, error) {
	opts.defaults()
	ref, err := opts.parseReference()
	if err != nil {
		return nil, "", WrapRegistryError(err, opts.Reference, "pull")
	}

	img, err := remote.Image(ref, opts.remoteOptions(ctx)...)
	if err != nil {
		return nil, "", WrapRegistryError(err, opts.Reference, "pull")
	}

	manifest, err := img.Manifest()
	if err != nil {
		return nil, "", fmt.Errorf("failed to get manifest: %w", err)
	}
	if got := manifest.Annotations[annotationArtifactType]; got != ArchiveArtifactType {
		return nil, "", &RegistryError{
			Type:       ErrTypeInvalidArtifact,
			Message:    fmt.Sprintf("not a blueprint archive: %s", opts.Reference),
			Suggestion: fmt.Sprintf("The artifact has type %q but %q was expected. Push archives with 'blueprint export --publish-oci'.", got, ArchiveArtifactType),
			Reference:  opts.Reference,
		}
	}
	if len(manifest.Layers) != 1 || manifest.Layers[0].MediaType != types.MediaType(ArchiveLayerMediaType) {
		return nil, "", &RegistryError{
			Type:      ErrTypeInvalidArtifact,
			Message:   fmt.Sprintf("unexpected layer layout in %s", opts.Reference),
			Reference: opts.Reference,
		}
	}

	layers, err := img.Layers()
	if err != nil {
		return nil, "", fmt.Errorf("failed to get layers: %w", err)
	}
	rc, err := layers[0].Compressed()
	if err != nil {
		return nil, "", fmt.Errorf("failed to get layer contents: %w", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read archive: %w", err)
	}

	filename := "blueprint.zip"
	if cfg, err := img.ConfigFile(); err == nil && cfg.Config.Labels[labelTitle] != "" {
		filename = cfg.Config.Labels[labelTitle]
	}
	return data, filename, nil
}

var _ Publisher = (*OCIPublisher)(nil)
