// Package client is the Go library for talking to an openmcp server.
//
// A Client is bound to one service and carries the API key on every request.
// Raw tool access goes through CallTool; the browseruse service additionally
// gets the BrowserSession wrapper so browser automation reads naturally:
//
//	c, err := client.New("browseruse", "", "")
//	if err != nil {
//		log.Fatal(err)
//	}
//	sess, err := c.CreateSession(ctx, client.DefaultSessionOptions())
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer sess.Close(ctx)
//
//	sess.Navigate(ctx, "https://example.com")
//	sess.Click(ctx, "#submit", "css")
//	sess.SaveScreenshot(ctx, "page.png")
//
// Tool failures surface as *ToolError; transport failures as plain errors.
package client
