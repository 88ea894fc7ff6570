package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	collogspb "go.opentelemetry.io/proto/otlp/collector/logs/v1"
	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	logspb "go.opentelemetry.io/proto/otlp/logs/v1"
	resourcepb "go.opentelemetry.io/proto/otlp/resource/v1"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

func main() {
	target := flag.String("target", "localhost:4317", "Ingestion gRPC endpoint")
	tenant := flag.String("tenant", "load-test", "Tenant id stamped on resource attributes")
	concurrency := flag.Int("c", 10, "Number of concurrent workers")
	duration := flag.Duration("d", 30*time.Second, "Duration of the load test")
	rps := flag.Int("rps", 100, "Export requests per second limit")
	batch := flag.Int("batch", 20, "Log records per export request")
	flag.Parse()

	log.Printf("Starting load test against %s", *target)
	log.Printf("Concurrency: %d, Duration: %s, RPS: %d, Batch: %d", *concurrency, *duration, *rps, *batch)

	conn, err := grpc.NewClient(*target, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		log.Fatalf("Failed to dial %s: %v", *target, err)
	}
	defer conn.Close()
	client := collogspb.NewLogsServiceClient(conn)

	var wg sync.WaitGroup
	var successCount, errorCount atomic.Int64
	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	limiter := rate.NewLimiter(rate.Limit(*rps), 100) // Allow bursts up to 100

	for i := 0; i < *concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				default:
					if err := limiter.Wait(ctx); err != nil {
						return
					}

					req := buildExport(*tenant, workerID, *batch)
					callCtx, callCancel := context.WithTimeout(ctx, 5*time.Second)
					_, err := client.Export(callCtx, req)
					callCancel()
					if err != nil {
						errorCount.Add(1)
					} else {
						successCount.Add(1)
					}
				}
			}
		}(i)
	}

	wg.Wait()
	log.Printf("Done. Success: %d, Errors: %d", successCount.Load(), errorCount.Load())
}

func buildExport(tenant string, workerID, batch int) *collogspb.ExportLogsServiceRequest {
	now := time.Now()
	records := make([]*logspb.LogRecord, 0, batch)
	for i := 0; i < batch; i++ {
		severity := logspb.SeverityNumber_SEVERITY_NUMBER_INFO
		if i%10 == 0 {
			severity = logspb.SeverityNumber_SEVERITY_NUMBER_ERROR
		}
		records = append(records, &logspb.LogRecord{
			TimeUnixNano:   uint64(now.UnixNano()),
			SeverityNumber: severity,
			Body: &commonpb.AnyValue{
				Value: &commonpb.AnyValue_StringValue{
					StringValue: fmt.Sprintf("load test event %d from worker %d", i, workerID),
				},
			},
			Attributes: []*commonpb.KeyValue{
				strAttr("http.route", "/api/load"),
			},
		})
	}

	return &collogspb.ExportLogsServiceRequest{
		ResourceLogs: []*logspb.ResourceLogs{{
			Resource: &resourcepb.Resource{
				Attributes: []*commonpb.KeyValue{
					strAttr("tenant.id", tenant),
					strAttr("source.id", fmt.Sprintf("worker-%d", workerID)),
					strAttr("service.name", "loadgen"),
				},
			},
			ScopeLogs: []*logspb.ScopeLogs{{LogRecords: records}},
		}},
	}
}

func strAttr(key, value string) *commonpb.KeyValue {
	return &commonpb.KeyValue{
		Key:   key,
		Value: &commonpb.AnyValue{Value: &commonpb.AnyValue_StringValue{StringValue: value}},
	}
}
