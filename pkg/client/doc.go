// Package client is the REST client for the Zeal Integration Protocol API.
//
// It covers the webhook registration endpoints and the health check, and it
// adapts the webhooks API into a subscription.Registrar so a receiver can
// register itself:
//
//	c, err := client.New(client.Config{BaseURL: "https://zeal.example.com", AuthToken: token})
//	if err != nil {
//	    return err
//	}
//	sub := c.NewSubscription(subscription.DefaultOptions())
//	if err := sub.Start(ctx); err != nil {
//	    return err
//	}
//	defer sub.Stop(context.Background())
//
// # Retries
//
// Every request goes through one retry loop. Network errors and 5xx responses
// are retried with exponential backoff up to Config.MaxRetries times; 4xx
// responses are returned immediately as *APIError.
package client
