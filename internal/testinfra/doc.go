// Stronghold - Resilient Backup Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stronghold

// Package testinfra provides container-backed fixtures for integration tests.
//
// It uses testcontainers-go to start a disposable PostgreSQL server so the
// database dump step can be exercised against the real pg_dump wire protocol:
//
//	func TestDumpAgainstPostgres(t *testing.T) {
//	    testinfra.SkipIfNoDocker(t)
//	    ctx := context.Background()
//	    pg, err := testinfra.NewPostgresContainer(ctx)
//	    if err != nil {
//	        t.Fatal(err)
//	    }
//	    defer testinfra.CleanupContainer(t, ctx, pg)
//
//	    ok, err := dump.New(dump.Config{}).Backup(ctx, pg.Conn(), out)
//	}
//
// All files in this package carry the integration build tag. Run them with:
//
//	go test -tags integration ./...
//
// Tests skip when Docker is unavailable. The first run downloads the image.
package testinfra
