package forwarding

import "testing"

func TestParseLocationFromSSDPResponse(t *testing.T) {
	client := NewUPnPClient()
	response := "HTTP/1.1 200 OK\r\n" +
		"CACHE-CONTROL: max-age=1800\r\n" +
		"LOCATION: http://192.168.1.1:5000/rootDesc.xml\r\n" +
		"ST: urn:schemas-upnp-org:device:InternetGatewayDevice:1\r\n\r\n"

	got, err := client.parseLocationFromSSDPResponse(response)
	if err != nil {
		t.Fatalf("parseLocationFromSSDPResponse: %v", err)
	}
	want := "http://192.168.1.1:5000/rootDesc.xml"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestParseLocationFromSSDPResponseMissing(t *testing.T) {
	client := NewUPnPClient()
	if _, err := client.parseLocationFromSSDPResponse("HTTP/1.1 200 OK\r\n\r\n"); err == nil {
		t.Fatal("expected an error when LOCATION is absent")
	}
}

func TestUPnPBackendUninitClearsDiscoveryState(t *testing.T) {
	backend := NewUPnPBackend("192.168.1.50")
	backend.client.discoveryDone = true
	backend.client.controlURL = "http://192.168.1.1:5000/ctl"

	if err := backend.Uninit(); err != nil {
		t.Fatalf("Uninit: %v", err)
	}
	if backend.client.discoveryDone {
		t.Fatal("discoveryDone should be cleared")
	}
	if backend.client.controlURL != "" {
		t.Fatal("controlURL should be cleared")
	}
}
