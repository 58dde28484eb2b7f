package storage

import (
	"cognito-backend/config"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aliyun/alibabacloud-oss-go-sdk-v2/oss"
	"github.com/aliyun/alibabacloud-oss-go-sdk-v2/oss/credentials"
)

const presignExpiry = 15 * time.Minute

// OSSStore 对象存储访问层，音频文件在本地目录之外保留一份OSS副本
type OSSStore struct {
	client *oss.Client
	bucket string
}

func NewOSSStore() *OSSStore {
	cfg := &oss.Config{
		Region: oss.Ptr(config.Cfg.OSS.Region),
		CredentialsProvider: credentials.NewStaticCredentialsProvider(
			config.Cfg.OSS.AccessKeyID,
			config.Cfg.OSS.AccessKeySecret,
		),
	}
	return &OSSStore{
		client: oss.NewClient(cfg),
		bucket: config.Cfg.OSS.BucketName,
	}
}

// PutObject 上传对象
func (s *OSSStore) PutObject(ctx context.Context, objectName string, body io.Reader) error {
	_, err := s.client.PutObject(ctx, &oss.PutObjectRequest{
		Bucket: oss.Ptr(s.bucket),
		Key:    oss.Ptr(objectName),
		Body:   body,
	})
	if err != nil {
		return fmt.Errorf("failed to put object to oss: %v", err)
	}
	return nil
}

// GetObject 读取对象，调用方负责关闭返回的Body
func (s *OSSStore) GetObject(ctx context.Context, objectName string) (io.ReadCloser, error) {
	result, err := s.client.GetObject(ctx, &oss.GetObjectRequest{
		Bucket: oss.Ptr(s.bucket),
		Key:    oss.Ptr(objectName),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get object from oss: %v", err)
	}
	return result.Body, nil
}

// PresignGetURL 生成限时下载链接
func (s *OSSStore) PresignGetURL(ctx context.Context, objectName string) (string, error) {
	result, err := s.client.Presign(ctx, &oss.GetObjectRequest{
		Bucket: oss.Ptr(s.bucket),
		Key:    oss.Ptr(objectName),
	}, oss.PresignExpires(presignExpiry))
	if err != nil {
		return "", fmt.Errorf("failed to presign object url: %v", err)
	}
	return result.URL, nil
}
