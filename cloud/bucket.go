/*
Copyright © 2026 the dosio authors.
This file is part of dosio.

dosio is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

dosio is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with dosio.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package cloud reads and writes dosio files held in blob storage, so that
// partial-dose chunks written by remote workers can be combined without
// copying them to local disk first.
package cloud

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"gocloud.dev/blob"
	"gocloud.dev/blob/fileblob"
	"gocloud.dev/blob/gcsblob"
	"gocloud.dev/blob/memblob"
	"gocloud.dev/blob/s3blob"
	"gocloud.dev/gcp"
)

// Providers lists the URL schemes accepted by OpenBucket.
var Providers = []string{"file", "mem", "gs", "s3"}

var (
	memMu      sync.Mutex
	memBuckets = make(map[string]*blob.Bucket)
)

// OpenBucket returns the blob storage bucket specified by bucketName,
// where bucketName must be in the format 'provider://name' where provider
// is the name of the storage provider and name is the name of the bucket.
// Even if name contains subdirectories, only the base directory name will be
// used when opening the bucket.
// The accepted storage providers are "file" for the local filesystem,
// "mem" for an in-process bucket shared by every caller using the same
// name (e.g., for testing), "gs" for Google Cloud Storage, and "s3" for
// AWS S3.
func OpenBucket(ctx context.Context, bucketName string) (*blob.Bucket, error) {
	url, err := url.Parse(bucketName)
	if err != nil {
		return nil, fmt.Errorf("cloud.OpenBucket: %v", err)
	}
	switch url.Scheme {
	case "file":
		return fileblob.OpenBucket(url.Hostname(), nil)
	case "mem":
		return memBucket(url.Hostname()), nil
	case "gs":
		return gsBucket(ctx, url.Hostname())
	case "s3":
		return s3Bucket(ctx, url.Hostname())
	default:
		return nil, fmt.Errorf("cloud.OpenBucket: invalid provider %s", url.Scheme)
	}
}

// openBucket is the function used by the URL helpers to open buckets.
var openBucket = OpenBucket

// open opens the bucket bucketName and returns it with a function that
// releases it. Buckets of the mem provider are shared and stay open.
func open(ctx context.Context, bucketName string) (*blob.Bucket, func() error, error) {
	bucket, err := openBucket(ctx, bucketName)
	if err != nil {
		return nil, nil, err
	}
	if strings.HasPrefix(bucketName, "mem://") {
		return bucket, func() error { return nil }, nil
	}
	return bucket, bucket.Close, nil
}

func memBucket(name string) *blob.Bucket {
	memMu.Lock()
	defer memMu.Unlock()
	b, ok := memBuckets[name]
	if !ok {
		b = memblob.OpenBucket(nil)
		memBuckets[name] = b
	}
	return b
}

func gsBucket(ctx context.Context, name string) (*blob.Bucket, error) {
	// See here for information on credentials:
	// https://cloud.google.com/docs/authentication/getting-started
	creds, err := gcp.DefaultCredentials(ctx)
	if err != nil {
		return nil, err
	}
	c, err := gcp.NewHTTPClient(gcp.DefaultTransport(), gcp.CredentialsTokenSource(creds))
	if err != nil {
		return nil, err
	}
	return gcsblob.OpenBucket(ctx, c, name, nil)
}

// s3Bucket opens an s3 storage bucket. It assumes the following
// environment variables are set: AWS_REGION, AWS_ACCESS_KEY_ID, and
// AWS_SECRET_ACCESS_KEY.
func s3Bucket(ctx context.Context, name string) (*blob.Bucket, error) {
	region := os.Getenv("AWS_REGION")
	if region == "" {
		region = "us-east-2"
	}
	c := &aws.Config{
		Region:      aws.String(region),
		Credentials: credentials.NewEnvCredentials(),
	}
	s, err := session.NewSession(c)
	if err != nil {
		return nil, fmt.Errorf("cloud: creating s3 session: %v", err)
	}
	return s3blob.OpenBucket(ctx, s, name, nil)
}

// IsBlob reports whether path is a blob URL with one of the accepted
// providers rather than a local file path.
func IsBlob(path string) bool {
	i := strings.Index(path, "://")
	if i <= 0 {
		return false
	}
	for _, p := range Providers {
		if path[:i] == p {
			return true
		}
	}
	return false
}

// SplitURL splits a blob URL such as "s3://bucket/run1/w1.pardose" into the
// bucket name ("s3://bucket") and the key within it ("run1/w1.pardose").
func SplitURL(blobURL string) (bucketName, key string, err error) {
	u, err := url.Parse(blobURL)
	if err != nil {
		return "", "", fmt.Errorf("cloud: parsing URL %s: %v", blobURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", "", fmt.Errorf("cloud: %s is not a blob URL", blobURL)
	}
	return u.Scheme + "://" + u.Host, strings.TrimLeft(u.Path, "/"), nil
}
