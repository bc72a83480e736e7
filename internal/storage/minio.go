package storage

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"screening-agent-go/internal/config"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/minio/minio-go/v7/pkg/lifecycle"
)

// ObjectStorage 对象存储接口
type ObjectStorage interface {
	// UploadParsedText 上传解析后的简历文本
	UploadParsedText(ctx context.Context, submissionUUID string, text string) (string, error)

	// GetParsedText 获取解析后的简历文本
	GetParsedText(ctx context.Context, objectKey string) (string, error)

	// UploadScreeningReport 上传筛选理由报告
	UploadScreeningReport(ctx context.Context, submissionUUID, configID string, report []byte) (string, error)

	// GetPresignedURL 获取预签名URL
	GetPresignedURL(ctx context.Context, bucketName, objectName string, expiry time.Duration) (string, error)

	// DeleteObject 删除对象
	DeleteObject(ctx context.Context, bucketName, objectName string) error
}

// 确保MinIO实现了ObjectStorage接口
var _ ObjectStorage = (*MinIO)(nil)

// MinIO 提供对象存储功能
type MinIO struct {
	client       *minio.Client
	cfg          *config.MinIOConfig
	parsedBucket string
	reportBucket string
	logger       *log.Logger
}

// NewMinIO 创建MinIO客户端
func NewMinIO(cfg *config.MinIOConfig, logger *log.Logger) (*MinIO, error) {
	if cfg == nil {
		return nil, fmt.Errorf("MinIO配置不能为空")
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("创建MinIO客户端失败: %w", err)
	}

	parsedBucket := cfg.ParsedTextBucket
	if parsedBucket == "" {
		parsedBucket = "parsed-texts"
	}
	reportBucket := cfg.ReportBucket
	if reportBucket == "" {
		reportBucket = "screening-reports"
	}

	m := &MinIO{
		client:       client,
		cfg:          cfg,
		parsedBucket: parsedBucket,
		reportBucket: reportBucket,
		logger:       logger,
	}

	if err := m.ensureBucketExists(parsedBucket, cfg.Location); err != nil {
		return nil, fmt.Errorf("确保解析文本存储桶 %s 存在失败: %w", parsedBucket, err)
	}
	if err := m.ensureBucketExists(reportBucket, cfg.Location); err != nil {
		return nil, fmt.Errorf("确保筛选报告存储桶 %s 存在失败: %w", reportBucket, err)
	}

	// 设置生命周期规则
	if cfg.ParsedTextExpireDays > 0 || cfg.ReportExpireDays > 0 {
		if err := m.setupLifecycleRules(context.Background()); err != nil {
			logger.Printf("[MinIO] 设置生命周期规则失败: %v", err)
		}
	}

	logger.Printf("[MinIO] 客户端初始化成功, endpoint: %s", cfg.Endpoint)
	return m, nil
}

// ensureBucketExists 确保存储桶存在
func (m *MinIO) ensureBucketExists(bucketName, location string) error {
	exists, err := m.client.BucketExists(context.Background(), bucketName)
	if err != nil {
		return fmt.Errorf("检查存储桶 %s 是否存在时出错: %w", bucketName, err)
	}
	if !exists {
		err = m.client.MakeBucket(context.Background(), bucketName, minio.MakeBucketOptions{Region: location})
		if err != nil {
			return fmt.Errorf("创建存储桶 %s 失败: %w", bucketName, err)
		}
		m.logger.Printf("[MinIO] 存储桶 %s 创建成功", bucketName)
	}
	return nil
}

// setupLifecycleRules 设置对象生命周期规则
func (m *MinIO) setupLifecycleRules(ctx context.Context) error {
	if m.cfg.ParsedTextExpireDays > 0 {
		if err := m.setupBucketLifecycle(ctx, m.parsedBucket, "expire-parsed-text", m.cfg.ParsedTextExpireDays); err != nil {
			return fmt.Errorf("为解析文本存储桶 %s 设置生命周期失败: %w", m.parsedBucket, err)
		}
	}
	if m.cfg.ReportExpireDays > 0 {
		if err := m.setupBucketLifecycle(ctx, m.reportBucket, "expire-reports", m.cfg.ReportExpireDays); err != nil {
			return fmt.Errorf("为筛选报告存储桶 %s 设置生命周期失败: %w", m.reportBucket, err)
		}
	}
	return nil
}

// setupBucketLifecycle 为指定存储桶设置生命周期规则
func (m *MinIO) setupBucketLifecycle(ctx context.Context, bucketName, ruleID string, expiryDays int) error {
	config := lifecycle.NewConfiguration()
	config.Rules = []lifecycle.Rule{
		{
			ID:     ruleID,
			Status: "Enabled",
			Expiration: lifecycle.Expiration{
				Days: lifecycle.ExpirationDays(expiryDays),
			},
		},
	}

	if err := m.client.SetBucketLifecycle(ctx, bucketName, config); err != nil {
		return err
	}
	m.logger.Printf("[MinIO] 已为存储桶 %s 设置生命周期: %d天", bucketName, expiryDays)
	return nil
}

// parsedTextObjectKey 解析文本的对象键, 例如: resume/{submissionUUID}/parsed_text.txt
func parsedTextObjectKey(submissionUUID string) string {
	return fmt.Sprintf("resume/%s/parsed_text.txt", submissionUUID)
}

// UploadParsedText 上传解析后的文本到MinIO
func (m *MinIO) UploadParsedText(ctx context.Context, submissionUUID string, text string) (string, error) {
	objectName := parsedTextObjectKey(submissionUUID)

	_, err := m.client.PutObject(ctx, m.parsedBucket, objectName,
		strings.NewReader(text), int64(len(text)),
		minio.PutObjectOptions{ContentType: "text/plain"})
	if err != nil {
		return "", fmt.Errorf("上传解析文本 %s 到存储桶 %s 失败: %w", objectName, m.parsedBucket, err)
	}
	return objectName, nil
}

// UploadParsedTextWithMD5 上传解析文本并同时计算MD5
// 返回: objectKey, md5Hex, error
func (m *MinIO) UploadParsedTextWithMD5(ctx context.Context, submissionUUID string, text string) (string, string, error) {
	objectName := parsedTextObjectKey(submissionUUID)

	md5Hash := md5.New()
	teeReader := io.TeeReader(strings.NewReader(text), md5Hash)

	_, err := m.client.PutObject(ctx, m.parsedBucket, objectName, teeReader,
		int64(len(text)), minio.PutObjectOptions{ContentType: "text/plain"})
	if err != nil {
		return "", "", fmt.Errorf("流式上传解析文本到MinIO失败: %w", err)
	}

	md5Hex := hex.EncodeToString(md5Hash.Sum(nil))
	return objectName, md5Hex, nil
}

// GetParsedText 从MinIO获取解析后的文本
func (m *MinIO) GetParsedText(ctx context.Context, objectKey string) (string, error) {
	obj, err := m.client.GetObject(ctx, m.parsedBucket, objectKey, minio.GetObjectOptions{})
	if err != nil {
		return "", fmt.Errorf("获取对象 %s/%s 失败: %w", m.parsedBucket, objectKey, err)
	}
	defer obj.Close()

	// Stat确认对象存在，GetObject本身是惰性的
	if _, err := obj.Stat(); err != nil {
		return "", fmt.Errorf("获取对象 %s/%s 状态失败: %w", m.parsedBucket, objectKey, err)
	}

	data, err := io.ReadAll(obj)
	if err != nil {
		return "", fmt.Errorf("读取对象 %s/%s 数据失败: %w", m.parsedBucket, objectKey, err)
	}
	return string(data), nil
}

// UploadScreeningReport 上传筛选理由报告(JSON)
func (m *MinIO) UploadScreeningReport(ctx context.Context, submissionUUID, configID string, report []byte) (string, error) {
	objectName := fmt.Sprintf("report/%s/%s.json", configID, submissionUUID)

	_, err := m.client.PutObject(ctx, m.reportBucket, objectName,
		strings.NewReader(string(report)), int64(len(report)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return "", fmt.Errorf("上传筛选报告 %s 到存储桶 %s 失败: %w", objectName, m.reportBucket, err)
	}
	return objectName, nil
}

// GetScreeningReport 获取筛选理由报告
func (m *MinIO) GetScreeningReport(ctx context.Context, objectKey string) ([]byte, error) {
	obj, err := m.client.GetObject(ctx, m.reportBucket, objectKey, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("获取对象 %s/%s 失败: %w", m.reportBucket, objectKey, err)
	}
	defer obj.Close()

	if _, err := obj.Stat(); err != nil {
		return nil, fmt.Errorf("获取对象 %s/%s 状态失败: %w", m.reportBucket, objectKey, err)
	}

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("读取对象 %s/%s 数据失败: %w", m.reportBucket, objectKey, err)
	}
	return data, nil
}

// GetPresignedURL 获取预签名URL
func (m *MinIO) GetPresignedURL(ctx context.Context, bucketName, objectName string, expiry time.Duration) (string, error) {
	presignedURL, err := m.client.PresignedGetObject(ctx, bucketName, objectName, expiry, nil)
	if err != nil {
		return "", fmt.Errorf("生成MinIO预签名URL失败: %w", err)
	}
	return presignedURL.String(), nil
}

// DeleteObject 删除对象
func (m *MinIO) DeleteObject(ctx context.Context, bucketName, objectName string) error {
	if err := m.client.RemoveObject(ctx, bucketName, objectName, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("删除对象 %s/%s 失败: %w", bucketName, objectName, err)
	}
	return nil
}

// StatObject 暴露底层的StatObject方法，用于测试或特定场景
func (m *MinIO) StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error) {
	return m.client.StatObject(ctx, bucketName, objectName, opts)
}

// ParsedTextBucket 返回解析文本存储桶名称
func (m *MinIO) ParsedTextBucket() string {
	return m.parsedBucket
}

// ReportBucket 返回筛选报告存储桶名称
func (m *MinIO) ReportBucket() string {
	return m.reportBucket
}
