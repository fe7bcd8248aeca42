// Package archive persists flag store snapshots to S3.
//
// The archiver subscribes to a store and uploads the full snapshot as a
// JSON object after each burst of mutations, keyed by the store version.
// The resulting bucket prefix is an append-only history of the mapping,
// usable for audit and rollback.
//
//	cfg, _ := config.LoadDefaultConfig(ctx)
//	arch := archive.New(s3.NewFromConfig(cfg), flags.SharedStore(), archive.Config{
//	    Bucket: "my-flags",
//	    Prefix: "snapshots/",
//	}, nil)
//	arch.Start()
//	defer arch.Stop()
package archive
