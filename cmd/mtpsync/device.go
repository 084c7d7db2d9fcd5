package main

import (
	"context"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/bamsammich/mtpsync/internal/device"
	"github.com/bamsammich/mtpsync/internal/device/fsdev"
	"github.com/bamsammich/mtpsync/internal/device/sftpdev"
)

// newDevice creates the device named by --device without connecting it.
//
//nolint:ireturn // factory returns interface by design
func newDevice(g *globalOpts) (device.Device, error) {
	if g.device == "" {
		return nil, errors.New("no device: set --device or defaults.device in the config file")
	}
	loc, err := device.ParseLocation(g.device)
	if err != nil {
		return nil, err
	}
	if !loc.IsSFTP() {
		return fsdev.NewMount(loc.Path, fsdev.WithStorageObjects(g.storageObjects)), nil
	}

	user := loc.User
	if user == "" {
		user = g.sshUser
	}
	port := loc.Port
	if port == 0 {
		port = g.sshPort
	}
	return sftpdev.New(sftpdev.Options{
		Host: loc.Host,
		User: user,
		Root: loc.Path,
		SSH: sftpdev.SSHOpts{
			KeyFile:    g.sshKeyFile,
			KnownHosts: g.knownHosts,
			Port:       port,
		},
		StorageObjects: g.storageObjects,
	}), nil
}

// openDevice creates and connects the device named by --device.
//
//nolint:ireturn // factory returns interface by design
func openDevice(ctx context.Context, g *globalOpts) (device.Device, error) {
	dev, err := newDevice(g)
	if err != nil {
		return nil, err
	}
	if err := dev.Connect(ctx); err != nil {
		return nil, err
	}
	zerolog.Ctx(ctx).Debug().Str("device", g.device).Msg("connected")
	return dev, nil
}
