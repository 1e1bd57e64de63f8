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

package cloud

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/sirupsen/logrus"
	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"
)

// NewBackOff returns the retry policy used by ReadBlob.
var NewBackOff = func() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 2 * time.Minute
	return b
}

// ReadBlob reads the given blob from the given bucket. Transient failures
// are retried with exponential backoff and logged to log; a missing blob
// is not retried.
func ReadBlob(ctx context.Context, bucket *blob.Bucket, key string, log logrus.FieldLogger) ([]byte, error) {
	var data []byte
	err := backoff.RetryNotify(
		func() error {
			var err error
			data, err = readBlob(ctx, bucket, key)
			if err != nil && gcerrors.Code(err) == gcerrors.NotFound {
				return backoff.Permanent(err)
			}
			return err
		},
		backoff.WithContext(NewBackOff(), ctx),
		func(err error, d time.Duration) {
			log.WithField("key", key).Warnf("%v: retrying in %v", err, d)
		},
	)
	if err != nil {
		return nil, fmt.Errorf("dosio/cloud: reading blob %s: %v", key, err)
	}
	return data, nil
}

// readBlob reads the given blob from the given bucket.
func readBlob(ctx context.Context, bucket *blob.Bucket, key string) ([]byte, error) {
	var b bytes.Buffer
	r, err := bucket.NewReader(ctx, key, nil)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	if _, err = io.Copy(&b, r); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

// WriteBlob writes the given data to the given bucket.
func WriteBlob(ctx context.Context, bucket *blob.Bucket, key string, data []byte) error {
	b := bytes.NewBuffer(data)
	w, err := bucket.NewWriter(ctx, key, &blob.WriterOptions{})
	if err != nil {
		return fmt.Errorf("dosio/cloud: creating writer for blob %s: %v", key, err)
	}
	_, err = io.Copy(w, b)
	if err != nil {
		w.Close()
		return fmt.Errorf("dosio/cloud: copying blob %s: %v", key, err)
	}
	if err = w.Close(); err != nil {
		return fmt.Errorf("dosio/cloud: writing blob %s: %v", key, err)
	}
	return nil
}

// ReadURL reads the blob at a URL such as "gs://bucket/run1/w1.pardose".
func ReadURL(ctx context.Context, blobURL string, log logrus.FieldLogger) ([]byte, error) {
	bucketName, key, err := SplitURL(blobURL)
	if err != nil {
		return nil, err
	}
	bucket, release, err := open(ctx, bucketName)
	if err != nil {
		return nil, err
	}
	defer release()
	return ReadBlob(ctx, bucket, key, log)
}

// WriteURL writes data to the blob at blobURL.
func WriteURL(ctx context.Context, blobURL string, data []byte) error {
	bucketName, key, err := SplitURL(blobURL)
	if err != nil {
		return err
	}
	bucket, release, err := open(ctx, bucketName)
	if err != nil {
		return err
	}
	if err = WriteBlob(ctx, bucket, key, data); err != nil {
		release()
		return err
	}
	return release()
}

// List returns the URLs of the blobs directly inside the directory dirURL
// whose names end in ext, in the order the bucket lists them. It is used to
// collect the partial-dose chunks of one run.
func List(ctx context.Context, dirURL, ext string) ([]string, error) {
	bucketName, prefix, err := SplitURL(dirURL)
	if err != nil {
		return nil, err
	}
	bucket, release, err := open(ctx, bucketName)
	if err != nil {
		return nil, err
	}
	defer release()
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	iter := bucket.List(&blob.ListOptions{
		Prefix:    prefix,
		Delimiter: "/",
	})
	var o []string
	for {
		obj, err := iter.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("dosio/cloud: listing %s: %v", dirURL, err)
		}
		if obj.IsDir || path.Ext(obj.Key) != ext {
			continue
		}
		o = append(o, bucketName+"/"+obj.Key)
	}
	return o, nil
}
