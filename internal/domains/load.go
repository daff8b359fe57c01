package domains

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

//go:embed institutions.json
var defaultDataset []byte

// Default returns the dataset compiled into the binary.
func Default() ([]Institution, error) {
	return ReadJSON(bytes.NewReader(defaultDataset))
}

func ReadJSON(r io.Reader) ([]Institution, error) {
	var records []Institution
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("decode institutions: %w", err)
	}
	return records, nil
}

// ReadCSV parses a CSV with a header row. A "domain" column is required;
// "institution" (or "name") and "country" are optional. Header matching is
// case-insensitive and rows with the wrong field count are skipped.
func ReadCSV(r io.Reader) ([]Institution, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	headers, err := reader.Read()
	if err != nil {
		return nil, err
	}

	domainIdx, nameIdx, countryIdx := -1, -1, -1
	for i, h := range headers {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "domain":
			domainIdx = i
		case "institution", "name":
			nameIdx = i
		case "country":
			countryIdx = i
		}
	}
	if domainIdx == -1 {
		return nil, errors.New("csv must contain a domain column")
	}

	field := func(record []string, i int) string {
		if i < 0 {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	records := make([]Institution, 0)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) && errors.Is(perr.Err, csv.ErrFieldCount) {
				// skip malformed row
				continue
			}
			return nil, err
		}

		d := field(record, domainIdx)
		if d == "" {
			continue
		}

		records = append(records, Institution{
			Domain:  d,
			Name:    field(record, nameIdx),
			Country: field(record, countryIdx),
		})
	}

	return records, nil
}

func readByExt(name string, r io.Reader) ([]Institution, error) {
	switch strings.ToLower(path.Ext(name)) {
	case ".csv":
		return ReadCSV(r)
	case ".json":
		return ReadJSON(r)
	default:
		return nil, fmt.Errorf("unsupported dataset format %q", name)
	}
}

func LoadFile(name string) ([]Institution, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return readByExt(name, f)
}

// S3GetObjectAPI is the slice of the S3 client the loader needs.
type S3GetObjectAPI interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

func LoadS3(ctx context.Context, api S3GetObjectAPI, bucket, key string) ([]Institution, error) {
	out, err := api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("get s3://%s/%s: %w", bucket, key, err)
	}
	defer out.Body.Close()

	return readByExt(key, out.Body)
}

// Load resolves a DOMAINS_SOURCE value: empty for the embedded dataset,
// s3://bucket/key for S3, anything else is a local path.
func Load(ctx context.Context, source string) ([]Institution, error) {
	switch {
	case source == "":
		return Default()

	case strings.HasPrefix(source, "s3://"):
		bucket, key, ok := strings.Cut(strings.TrimPrefix(source, "s3://"), "/")
		if !ok || bucket == "" || key == "" {
			return nil, fmt.Errorf("invalid s3 source %q", source)
		}
		cfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		return LoadS3(ctx, s3.NewFromConfig(cfg), bucket, key)

	default:
		return LoadFile(source)
	}
}
