/*
This provides an integration check for blobconn against a real Azure Blob Storage
account. It opens a scoped connection, exercises the returned handle (container
create, blob upload, download, list and delete) and verifies the lifecycle
invariants: close runs once, a second close fails its precondition.

Run with an account key, a SAS token or a managed identity:

	go run . -endpoint https://acct.blob.core.windows.net -account acct -key <base64 key>
	go run . -endpoint https://acct.blob.core.windows.net -sas "<token>"
	go run . -endpoint https://acct.blob.core.windows.net -msi <client id>

With no credential flags, az login credentials are used.
*/
package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/fatih/color"
	"github.com/go-json-experiment/json"
	"github.com/gostdlib/base/context"
	"github.com/tidwall/pretty"

	"github.com/element-of-surprise/blobconn"
	"github.com/element-of-surprise/blobconn/errors"
)

//+gocover:ignore:file Integration check requires a live storage account.

var (
	endpoint  = flag.String("endpoint", "", "the blob storage endpoint")
	account   = flag.String("account", "", "the storage account name, used with -key")
	key       = flag.String("key", "", "the storage account shared key")
	sas       = flag.String("sas", "", "a SAS token")
	msi       = flag.String("msi", "", "the managed identity client ID")
	container = flag.String("container", "blobconn-integration", "the container used for the check")
)

func main() {
	flag.Parse()

	ctx := context.Background()

	if *endpoint == "" {
		fail("-endpoint is required")
	}

	cred, err := buildCred()
	if err != nil {
		fail("failed to build credential: %v", err)
	}

	conn, err := blobconn.New(*endpoint, cred)
	if err != nil {
		fail("failed to create connection: %v", err)
	}

	client, err := conn.Open(ctx)
	if err != nil {
		fail("failed to open connection: %v", err)
	}

	blobName := fmt.Sprintf("check-%d.txt", time.Now().UnixNano())
	data := []byte(fmt.Sprintf("blobconn integration %s", time.Now().UTC()))

	if _, err := client.CreateContainer(ctx, *container, nil); err != nil {
		fail("failed to create container(%s): %v", *container, err)
	}
	if _, err := client.UploadBuffer(ctx, *container, blobName, data, nil); err != nil {
		fail("failed to upload blob(%s): %v", blobName, err)
	}

	resp, err := client.DownloadStream(ctx, *container, blobName, nil)
	if err != nil {
		fail("failed to download blob(%s): %v", blobName, err)
	}
	got, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		fail("failed to read blob(%s): %v", blobName, err)
	}
	if !bytes.Equal(got, data) {
		fail("downloaded blob(%s) did not match the uploaded data", blobName)
	}

	names := []string{}
	pager := client.NewListBlobsFlatPager(*container, nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			fail("failed to list blobs: %v", err)
		}
		for _, b := range page.Segment.BlobItems {
			if b.Name != nil {
				names = append(names, *b.Name)
			}
		}
	}
	if out, err := json.Marshal(names); err == nil {
		fmt.Printf("blobs in %s: %s", *container, pretty.Pretty(out))
	}

	if _, err := client.DeleteBlob(ctx, *container, blobName, nil); err != nil {
		fail("failed to delete blob(%s): %v", blobName, err)
	}
	if _, err := client.DeleteContainer(ctx, *container, nil); err != nil {
		fail("failed to delete container(%s): %v", *container, err)
	}

	if err := conn.Close(ctx); err != nil {
		fail("failed to close connection: %v", err)
	}
	if err := conn.Close(ctx); errors.TypeOf(err) != errors.TypeState {
		fail("double close should fail with a state error, got: %v", err)
	}

	color.Green("OK: scoped connection lifecycle verified against %s", *endpoint)
}

func buildCred() (blobconn.Credential, error) {
	switch {
	case *key != "":
		if *account == "" {
			return blobconn.Credential{}, fmt.Errorf("-key requires -account")
		}
		return blobconn.SharedKey(*account, *key), nil
	case *sas != "":
		return blobconn.SASToken(*sas), nil
	case *msi != "":
		c, err := azidentity.NewManagedIdentityCredential(&azidentity.ManagedIdentityCredentialOptions{
			ID: azidentity.ClientID(*msi),
		})
		if err != nil {
			return blobconn.Credential{}, err
		}
		return blobconn.TokenCredential(c), nil
	default:
		c, err := azidentity.NewAzureCLICredential(nil)
		if err != nil {
			return blobconn.Credential{}, err
		}
		return blobconn.TokenCredential(c), nil
	}
}

func fail(format string, args ...any) {
	color.Red("FAIL: "+format, args...)
	os.Exit(1)
}
