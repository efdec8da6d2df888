// Package minio stores table snapshots in MinIO or any S3-compatible object
// store.
//
// Typical setup:
//
//	client, err := minio.New("play.min.io", &minio.Options{
//		Creds: credentials.NewStaticV4(accessKey, secretKey, ""),
//	})
//	store := miniostore.NewStore(client, "embeddings", "runs/")
//	err = persistence.Save(ctx, store, tab)
package minio
