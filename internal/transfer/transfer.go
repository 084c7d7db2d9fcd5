// Package transfer copies single files and directory trees between the
// local filesystem and a portable media device.
//
// Every operation checks its arguments and the device connection before
// doing any I/O. Copies are sequential; the first failure aborts the rest
// of the operation and leaves whatever was already written in place.
package transfer

import (
	"context"
	"os"
	"path"
	"path/filepath"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/bamsammich/mtpsync/internal/device"
)

// DownloadFile copies the device file source to the local path
// destination, replacing it if present.
func DownloadFile(ctx context.Context, dev device.Device, source, destination string, opts ...Option) error {
	o, err := prepare(dev, source, destination, opts)
	if err != nil {
		return err
	}
	src := device.Clean(source)
	zerolog.Ctx(ctx).Debug().Str("source", src).Str("destination", destination).Msg("download file")

	j := job{
		src:  deviceSource{dev: dev, root: path.Dir(src)},
		dst:  newLocalSink(filepath.Dir(destination)),
		opts: o,
	}
	it := item{
		entry: device.Entry{FullName: src, Kind: device.KindFile},
		rel:   filepath.Base(destination),
	}
	return copyFile(ctx, j, it)
}

// UploadFile copies the local file source to the device path destination,
// replacing it if present.
func UploadFile(ctx context.Context, dev device.Device, source, destination string, opts ...Option) error {
	o, err := prepare(dev, source, destination, opts)
	if err != nil {
		return err
	}
	dst := device.Clean(destination)
	zerolog.Ctx(ctx).Debug().Str("source", source).Str("destination", dst).Msg("upload file")

	info, err := os.Stat(source)
	if err != nil {
		return errors.Errorf("stat %s: %w", source, err)
	}
	if info.IsDir() {
		return errors.Errorf("%s is a directory: %w", source, ErrInvalidArgument)
	}

	j := job{
		src:  newLocalSource(filepath.Dir(source)),
		dst:  newDeviceSink(dev, path.Dir(dst)),
		opts: o,
	}
	it := item{
		entry: device.Entry{FullName: source, Kind: device.KindFile, Size: info.Size(), ModTime: info.ModTime()},
		rel:   path.Base(dst),
	}
	return copyFile(ctx, j, it)
}

// DownloadFolder copies the device directory source into the local
// directory destination, creating it if absent. Flat copies only the
// direct file children of source.
func DownloadFolder(ctx context.Context, dev device.Device, source, destination string, recursive bool, opts ...Option) error {
	o, err := prepare(dev, source, destination, opts)
	if err != nil {
		return err
	}
	zerolog.Ctx(ctx).Debug().Str("source", source).Str("destination", destination).
		Bool("recursive", recursive).Msg("download folder")

	return run(ctx, job{
		src:   deviceSource{dev: dev, root: device.Clean(source)},
		dst:   newLocalSink(destination),
		opts:  o,
		depth: depthOf(recursive),
	})
}

// UploadFolder copies the local directory source into the device directory
// destination. The destination is always created first. Flat copies only
// the direct file children of source.
func UploadFolder(ctx context.Context, dev device.Device, source, destination string, recursive bool, opts ...Option) error {
	o, err := prepare(dev, source, destination, opts)
	if err != nil {
		return err
	}
	zerolog.Ctx(ctx).Debug().Str("source", source).Str("destination", destination).
		Bool("recursive", recursive).Msg("upload folder")

	return run(ctx, job{
		src:   newLocalSource(source),
		dst:   newDeviceSink(dev, destination),
		opts:  o,
		depth: depthOf(recursive),
	})
}

func prepare(dev device.Device, source, destination string, opts []Option) (*options, error) {
	if err := checkArgs(dev, source, destination); err != nil {
		return nil, err
	}
	return buildOptions(opts)
}
