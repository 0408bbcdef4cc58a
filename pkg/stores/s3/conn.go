/*
Package s3 holds the object-store connection and the evidence repository
built on it. Business profiles and evidence artifacts live in a single
bucket, keyed by profile id.
*/
package s3

import (
	"bytes"
	"context"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/spf13/viper"

	"github.com/complygraph/complygraph/pkg/errors"
)

/*
Conn wraps a minio client plus the bucket everything is stored in. It works
against any S3-compatible endpoint.
*/
type Conn struct {
	client *minio.Client
	bucket string
}

type ConnOption func(*Conn)

/*
NewConn builds a connection from configuration: s3.endpoint, s3.access_key,
s3.secret_key, s3.use_ssl and s3.bucket.
*/
func NewConn(options ...ConnOption) (*Conn, error) {
	conn := &Conn{bucket: viper.GetString("s3.bucket")}

	if conn.bucket == "" {
		conn.bucket = "compliance"
	}

	for _, option := range options {
		option(conn)
	}

	if conn.client != nil {
		return conn, nil
	}

	client, err := minio.New(viper.GetString("s3.endpoint"), &minio.Options{
		Creds: credentials.NewStaticV4(
			viper.GetString("s3.access_key"),
			viper.GetString("s3.secret_key"),
			"",
		),
		Secure: viper.GetBool("s3.use_ssl"),
	})

	if err != nil {
		return nil, errors.ErrInitialization.WithMessagef("object store connection failed: %v", err)
	}

	conn.client = client
	return conn, nil
}

// WithClient injects a preconfigured client, used by tests.
func WithClient(client *minio.Client, bucket string) ConnOption {
	return func(conn *Conn) {
		conn.client = client
		conn.bucket = bucket
	}
}

func (conn *Conn) Get(ctx context.Context, key string) (*bytes.Buffer, error) {
	obj, err := conn.client.GetObject(ctx, conn.bucket, key, minio.GetObjectOptions{})

	if err != nil {
		return nil, err
	}

	defer obj.Close()

	buf := bytes.NewBuffer(nil)

	if _, err = io.Copy(buf, obj); err != nil {
		return nil, err
	}

	return buf, nil
}

func (conn *Conn) Put(ctx context.Context, key string, body io.Reader, size int64) error {
	_, err := conn.client.PutObject(
		ctx, conn.bucket, key, body, size, minio.PutObjectOptions{ContentType: "application/json"},
	)
	return err
}

// Count walks a key prefix and returns the number of objects under it.
func (conn *Conn) Count(ctx context.Context, prefix string) (int, error) {
	count := 0

	for object := range conn.client.ListObjects(ctx, conn.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if object.Err != nil {
			return 0, object.Err
		}
		count++
	}

	return count, nil
}
