// Package foundry is a Go client for Azure AI Foundry style APIs.
//
// The package owns the resilient request core: credential resolution with
// a cached, single-flight token refresh; a single retry loop with
// exponential backoff, jitter, and server retry hints; bounded streaming
// response parsing; and unconditional redaction of secrets from logs and
// error messages.
//
// Domain packages (sdk/chat, sdk/embeddings) shape payloads and delegate
// every wire exchange to a Client built here:
//
//	client, err := foundry.New(
//	    foundry.WithEndpoint("https://your-resource.services.ai.azure.com"),
//	    foundry.WithCredential(auth.NewStatic(os.Getenv("FOUNDRY_API_KEY"))),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	resp, err := chat.NewClient(client).Create(ctx, chat.Request{
//	    Model:    "gpt-4o",
//	    Messages: []chat.Message{chat.User("What is Go?")},
//	})
//
// Every error surfaced by the SDK is an *apierr.Error; branch on its Kind
// rather than matching message text.
package foundry
