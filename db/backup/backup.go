// Package backup dumps the database and keeps a rotating set of dumps in S3. Migrations can take a backup
// before touching the schema.
package backup

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"reevdb/config"
	"reevdb/log"
	"reevdb/oops"
	"slices"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Client is the subset of *s3.Client used for backups.
type S3Client interface {
	ListMultipartUploads(
		ctx context.Context, params *s3.ListMultipartUploadsInput, optFns ...func(*s3.Options),
	) (*s3.ListMultipartUploadsOutput, error)
	AbortMultipartUpload(
		ctx context.Context, params *s3.AbortMultipartUploadInput, optFns ...func(*s3.Options),
	) (*s3.AbortMultipartUploadOutput, error)
	CreateMultipartUpload(
		ctx context.Context, params *s3.CreateMultipartUploadInput, optFns ...func(*s3.Options),
	) (*s3.CreateMultipartUploadOutput, error)
	UploadPart(
		ctx context.Context, params *s3.UploadPartInput, optFns ...func(*s3.Options),
	) (*s3.UploadPartOutput, error)
	CompleteMultipartUpload(
		ctx context.Context, params *s3.CompleteMultipartUploadInput, optFns ...func(*s3.Options),
	) (*s3.CompleteMultipartUploadOutput, error)
	ListObjectsV2(
		ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options),
	) (*s3.ListObjectsV2Output, error)
	DeleteObjects(
		ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options),
	) (*s3.DeleteObjectsOutput, error)
}

var ErrNotConfigured = errors.New("backup bucket is not configured")

// S3 requires every part but the last to be at least 5MB.
var partSize = 50 * 1024 * 1024

func NewS3Client(ctx context.Context, cfg config.BackupConfig) (*s3.Client, error) {
	if !cfg.IsConfigured() {
		return nil, ErrNotConfigured
	}
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AwsAccessKey != "" {
		creds := credentials.NewStaticCredentialsProvider(cfg.AwsAccessKey, cfg.AwsSecretAccessKey, "")
		opts = append(opts, awsconfig.WithCredentialsProvider(creds))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, oops.Wrap(err)
	}
	return s3.NewFromConfig(awsCfg), nil
}

// Dump writes a pg_dump archive in custom format to w.
func Dump(ctx context.Context, dbCfg config.DBConfig, w io.Writer) error {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "pg_dump", "--format=custom", "--no-owner", "--dbname", dbCfg.DSN())
	cmd.Stdout = w
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return oops.Wrapf(err, "pg_dump: %s", strings.TrimSpace(stderr.String()))
	}
	return nil
}

// Key names a backup so that lexicographic order is chronological.
func Key(dbName string, reason string, now time.Time) string {
	return fmt.Sprintf("%s/%s-%s.dump", dbName, now.UTC().Format("20060102T150405Z"), reason)
}

// AbortIncompleteUploads cleans up multipart uploads left behind by crashed backups.
func AbortIncompleteUploads(ctx context.Context, client S3Client, bucket string) error {
	//nolint:exhaustruct
	incompleteUploads, err := client.ListMultipartUploads(ctx, &s3.ListMultipartUploadsInput{
		Bucket: aws.String(bucket),
	})
	if err != nil {
		return oops.Wrap(err)
	}
	if incompleteUploads.IsTruncated == nil || *incompleteUploads.IsTruncated {
		return oops.Newf("S3 incomplete uploads list was truncated at %d", len(incompleteUploads.Uploads))
	}
	if len(incompleteUploads.Uploads) == 0 {
		return nil
	}

	log.Info().Msgf("Aborting %d incomplete uploads", len(incompleteUploads.Uploads))
	for _, incompleteUpload := range incompleteUploads.Uploads {
		//nolint:exhaustruct
		_, err := client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
			Bucket:   aws.String(bucket),
			Key:      incompleteUpload.Key,
			UploadId: incompleteUpload.UploadId,
		})
		if err != nil {
			return oops.Wrap(err)
		}
	}
	return nil
}

// Upload streams r to bucket/key as a multipart upload. The upload is aborted if anything fails.
func Upload(ctx context.Context, client S3Client, bucket string, key string, r io.Reader) (err error) {
	//nolint:exhaustruct
	uploadOutput, err := client.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		ContentType: aws.String("application/octet-stream"),
	})
	if err != nil {
		return oops.Wrap(err)
	}
	defer func() {
		if err == nil {
			return
		}
		//nolint:exhaustruct
		_, abortErr := client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
			Bucket:   aws.String(bucket),
			Key:      aws.String(key),
			UploadId: uploadOutput.UploadId,
		})
		if abortErr != nil {
			log.Error().Err(abortErr).Msgf("Backup %s: couldn't abort upload", key)
		}
	}()

	buf := make([]byte, partSize)
	var completedParts []types.CompletedPart
	var partNumber int32 = 1
	for {
		partLength, readErr := io.ReadFull(r, buf)
		isLast := errors.Is(readErr, io.EOF) || errors.Is(readErr, io.ErrUnexpectedEOF)
		if readErr != nil && !isLast {
			return oops.Wrap(readErr)
		}
		// An empty dump still gets one (empty) part so that the upload can complete
		if partLength == 0 && len(completedParts) > 0 {
			break
		}

		//nolint:exhaustruct
		uploadResult, err := client.UploadPart(ctx, &s3.UploadPartInput{
			Body:       bytes.NewReader(buf[:partLength]),
			Bucket:     aws.String(bucket),
			Key:        aws.String(key),
			PartNumber: aws.Int32(partNumber),
			UploadId:   uploadOutput.UploadId,
		})
		if err != nil {
			return oops.Wrap(err)
		}
		//nolint:exhaustruct
		completedParts = append(completedParts, types.CompletedPart{
			ETag:       uploadResult.ETag,
			PartNumber: aws.Int32(partNumber),
		})
		partNumber++
		log.Debug().Msgf("Backup %s: uploaded %d parts", key, len(completedParts))
		if isLast {
			break
		}
	}

	//nolint:exhaustruct
	_, err = client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:   aws.String(bucket),
		Key:      aws.String(key),
		UploadId: uploadOutput.UploadId,
		MultipartUpload: &types.CompletedMultipartUpload{
			Parts: completedParts,
		},
	})
	if err != nil {
		return oops.Wrap(err)
	}
	log.Info().Msgf("Backup %s: upload done (%d parts)", key, len(completedParts))
	return nil
}

// Prune deletes everything under prefix except the keep newest objects.
func Prune(ctx context.Context, client S3Client, bucket string, prefix string, keep int) (int, error) {
	if keep < 1 {
		return 0, oops.Newf("Expected to keep at least one backup, got %d", keep)
	}

	//nolint:exhaustruct
	listOutput, err := client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	})
	if err != nil {
		return 0, oops.Wrap(err)
	}
	if listOutput.IsTruncated == nil || *listOutput.IsTruncated {
		return 0, oops.Newf("S3 list output was truncated at %d", len(listOutput.Contents))
	}
	objects := listOutput.Contents
	for _, object := range objects {
		if object.LastModified == nil || object.Key == nil {
			return 0, oops.New("S3 object is missing key or last modified time")
		}
	}
	slices.SortFunc(objects, func(a, b types.Object) int {
		if c := b.LastModified.Compare(*a.LastModified); c != 0 { // descending
			return c
		}
		return strings.Compare(*b.Key, *a.Key)
	})
	if len(objects) <= keep {
		log.Info().Msgf("No old backups to delete (total: %d)", len(objects))
		return 0, nil
	}

	var objectsToDelete []types.ObjectIdentifier
	for _, object := range objects[keep:] {
		//nolint:exhaustruct
		objectsToDelete = append(objectsToDelete, types.ObjectIdentifier{
			Key: object.Key,
		})
	}
	//nolint:exhaustruct
	deleteResult, err := client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
		Bucket: aws.String(bucket),
		Delete: &types.Delete{
			Objects: objectsToDelete,
		},
	})
	if err != nil {
		return 0, oops.Wrap(err)
	}
	for _, err := range deleteResult.Errors {
		log.Error().Msgf("Object deletion error: %s %s", aws.ToString(err.Key), aws.ToString(err.Message))
	}
	if len(deleteResult.Errors) > 0 {
		return len(deleteResult.Deleted), oops.Newf("Couldn't delete %d objects", len(deleteResult.Errors))
	}
	log.Info().Msgf("Deleted %d old backups", len(deleteResult.Deleted))
	return len(deleteResult.Deleted), nil
}

// Run dumps the database straight into S3 and prunes old backups. Returns the key of the new backup.
func Run(ctx context.Context, cfg config.Config, client S3Client, reason string) (string, error) {
	if !cfg.Backup.IsConfigured() {
		return "", ErrNotConfigured
	}
	bucket := cfg.Backup.Bucket
	if err := AbortIncompleteUploads(ctx, client, bucket); err != nil {
		return "", err
	}

	key := Key(cfg.DB.DBName, reason, time.Now())
	reader, writer := io.Pipe()
	dumpErrC := make(chan error, 1)
	go func() {
		err := Dump(ctx, cfg.DB, writer)
		_ = writer.CloseWithError(err)
		dumpErrC <- err
	}()

	uploadErr := Upload(ctx, client, bucket, key, reader)
	_ = reader.Close()
	dumpErr := <-dumpErrC
	if uploadErr != nil {
		return "", uploadErr
	}
	if dumpErr != nil {
		return "", dumpErr
	}

	if _, err := Prune(ctx, client, bucket, cfg.DB.DBName+"/", cfg.Backup.KeepCount); err != nil {
		return "", err
	}
	return key, nil
}
