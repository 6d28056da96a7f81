// Package eiostore is a streaming client for an HTTP object storage service.
//
// Objects are created, fetched, replaced and deleted over a REST API. Request
// and response bodies are streamed, never buffered whole, and every request
// is authorized with a JWT bearer token.
//
// # Key Components
//
//   - Client: the object operations (Get, Post, Put, Delete, DeleteMany, Find)
//   - CredentialProvider: mints a token from claims and a shared secret, or
//     passes a pre-signed token through
//   - BodyFactory: produces a fresh request body for every attempt
//   - Pipeline: an ordered chain of invertible stream transforms applied on
//     upload and reversed on download
//   - Retryer: runs attempts, classifies failures and backs off
//
// # Retries
//
// Transport failures and 5xx responses are retried up to RetryPolicy.Retries
// attempts in total. A 4xx response stops immediately. Every failure is an
// *Error whose Kind tells credential, client, server and internal failures
// apart:
//
//	_, err := client.Get(ctx, id, eiostore.GetOptions{})
//	if errors.Is(err, eiostore.ErrNotFound) {
//	    // 404
//	}
//
// # Example Usage
//
//	client, err := eiostore.New("https://storage.example.com",
//	    eiostore.WithSecret(secret),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fwd, rev := transform.GzipPair()
//	client.Use(fwd, rev)
//
//	info, err := client.Post(ctx, eiostore.FileBody("report.csv"), eiostore.WriteOptions{
//	    ContentType: "text/csv",
//	    Query:       map[string]string{"tenant": "acme"},
//	})
//
//	obj, err := client.Get(ctx, info.ObjectID, eiostore.GetOptions{})
//	defer obj.Close()
//
// See the transform package for compression and encryption stages and the
// objtest package for an in-memory fake of the service.
package eiostore
