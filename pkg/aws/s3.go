package aws

import (
	"context"
	"fmt"
	"time"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ObjectPresigner issues presigned upload URLs for a single bucket.
type ObjectPresigner struct {
	presigner *s3.PresignClient
	bucket    string
	publicURL string
}

// NewObjectPresigner builds a presigner for bucket. publicURL is the base used to
// build the object's final URL; when empty the virtual-hosted S3 URL is used.
func NewObjectPresigner(cfg sdkaws.Config, bucket, publicURL string) *ObjectPresigner {
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = endpointFromEnv() != ""
	})
	if publicURL == "" {
		publicURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", bucket, cfg.Region)
	}
	return &ObjectPresigner{
		presigner: s3.NewPresignClient(client),
		bucket:    bucket,
		publicURL: publicURL,
	}
}

// PresignPut returns a presigned PUT URL for key plus the headers the client
// must send with the upload.
func (p *ObjectPresigner) PresignPut(ctx context.Context, key, contentType string, expiry time.Duration) (string, map[string]string, error) {
	input := &s3.PutObjectInput{
		Bucket:      &p.bucket,
		Key:         &key,
		ContentType: &contentType,
	}

	presigned, err := p.presigner.PresignPutObject(ctx, input, func(o *s3.PresignOptions) {
		o.Expires = expiry
	})
	if err != nil {
		return "", nil, fmt.Errorf("failed to presign put object: %w", err)
	}

	headers := make(map[string]string)
	for k, v := range presigned.SignedHeader {
		if len(v) > 0 {
			headers[k] = v[0]
		}
	}
	return presigned.URL, headers, nil
}

// ObjectURL is the URL the object will be served from once uploaded.
func (p *ObjectPresigner) ObjectURL(key string) string {
	return p.publicURL + "/" + key
}
