package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"photoshelf/authn"
	"photoshelf/blobstore"
	"photoshelf/dblayer"
	"photoshelf/healthz"
	"photoshelf/httpmetrics"
	"photoshelf/mailer"
	"photoshelf/webapi"
	"photoshelf/webui"

	"cloud.google.com/go/firestore"
	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/storage"
	"contrib.go.opencensus.io/exporter/stackdriver"
	"github.com/golang/glog"
	"github.com/sendgrid/sendgrid-go"
	secretmanagerpb "google.golang.org/genproto/googleapis/cloud/secretmanager/v1"
)

var (
	debugListen         = flag.String("debug-listen", "127.0.0.1:8001", "Server address:port for debug endpoint.")
	uiListen            = flag.String("ui-listen", "127.0.0.1:8000", "Server address:port for ui endpoint.")
	dataProject         = flag.String("data-project", "", "GCP project that contains the application state.")
	googleOAuthClientID = flag.String("google-oauth-client-id", "", "Audience expected in the identity tokens clients present.")
	imagesBucket        = flag.String("images-bucket", "", "GCS bucket that stores uploaded image bytes.")
	sendgridKeySecret   = flag.String("sendgrid-key-secret", "", "GCP Secret Manager secret name that contains the Sendgrid API key.  Share notifications are disabled when empty.")
	mailFrom            = flag.String("mail-from", "bot@photoshelf.dev", "From address for share notification emails.")
	enableMetrics       = flag.Bool("enable-metrics", false, "")
)

func main() {
	flag.Parse()

	glog.Infof("flags:")
	glog.Infof("debug-listen: %v", *debugListen)
	glog.Infof("ui-listen: %v", *uiListen)
	glog.Infof("data-project: %v", *dataProject)
	glog.Infof("google-oauth-client-id: %v", *googleOAuthClientID)
	glog.Infof("images-bucket: %v", *imagesBucket)
	glog.Infof("sendgrid-key-secret: %v", *sendgridKeySecret)
	glog.Infof("mail-from: %v", *mailFrom)
	glog.Infof("enable-metrics: %v", *enableMetrics)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := do(ctx); err != nil {
		glog.Exitf("Error: %v", err)
	}
}

func do(ctx context.Context) error {
	fstore, err := firestore.NewClient(ctx, *dataProject)
	if err != nil {
		return fmt.Errorf("while creating FireStore client: %w", err)
	}

	gcsClient, err := storage.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("while creating GCS client: %w", err)
	}

	var shareMailer mailer.Mailer = mailer.NopMailer{}
	if *sendgridKeySecret != "" {
		sg, err := newSendgridClient(ctx)
		if err != nil {
			return fmt.Errorf("while creating Sendgrid client: %w", err)
		}
		shareMailer = mailer.NewSendGridMailer(sg, *mailFrom)
	}

	if *enableMetrics {
		exporter, err := stackdriver.NewExporter(stackdriver.Options{
			MetricPrefix:      "photoshelf",
			ReportingInterval: 60 * time.Second,
		})
		if err != nil {
			return fmt.Errorf("while initializing metrics: %w", err)
		}
		exporter.StartMetricsExporter()
		defer exporter.Flush()
		defer exporter.StopMetricsExporter()
	}

	debugServeMux := http.NewServeMux()
	debugServeMux.Handle("/healthz", healthz.New())
	debugServeMux.Handle("/readyz", healthz.New())
	debugServeMux.HandleFunc("/debug/pprof/", pprof.Index)
	debugServeMux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	debugServeMux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	debugServeMux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	debugServeMux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	debugServer := &http.Server{
		Addr:    *debugListen,
		Handler: debugServeMux,

		ReadTimeout:    30 * time.Second,
		WriteTimeout:   30 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	db := dblayer.New(fstore)
	verifier := authn.NewGoogleVerifier(*googleOAuthClientID)
	blobs := blobstore.NewGCSStore(gcsClient, *imagesBucket)

	api := webapi.New(db, verifier, blobs, shareMailer)
	ui := webui.New(db, verifier)

	uiServeMux := http.NewServeMux()
	api.Register(uiServeMux)
	ui.Register(uiServeMux)

	metrics := httpmetrics.New(uiServeMux)
	metrics.RegisterMetrics()

	uiServer := &http.Server{
		Addr:    *uiListen,
		Handler: metrics,

		ReadTimeout:    30 * time.Second,
		WriteTimeout:   30 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		if err := debugServer.ListenAndServe(); err != nil {
			glog.Fatalf("Debug server died: %v", err)
		}
	}()

	go func() {
		if err := uiServer.ListenAndServe(); err != nil {
			glog.Fatalf("UI server died: %v", err)
		}
	}()

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)
	<-signalCh

	glog.Flush()

	return nil
}

func newSendgridClient(ctx context.Context) (*sendgrid.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	secretClient, err := secretmanager.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("while creating Secret Manager client: %w", err)
	}
	defer secretClient.Close()

	resp, err := secretClient.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: fmt.Sprintf("projects/%s/secrets/%s/versions/latest", *dataProject, *sendgridKeySecret),
	})
	if err != nil {
		return nil, fmt.Errorf("while pulling secret: %w", err)
	}

	return sendgrid.NewSendClient(string(resp.GetPayload().GetData())), nil
}
