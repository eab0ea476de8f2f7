package fullnode

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hashvale/chiagate/lib/chain/types"
)

func TestDo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		switch r.URL.Path {
		case "/ok":
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"success": true, "value": 7})
		case "/refused":
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"success": false, "error": "no such coin"})
		case "/boom":
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	cl := New(srv.URL)
	defer cl.Close()

	// successful envelope
	raw, err := cl.Do(context.Background(), "ok", nil)
	if err != nil {
		t.Fatalf("Do ok err:%e", err)
	}

	var out struct {
		Value int `json:"value"`
	}
	if err = json.Unmarshal(raw, &out); err != nil || out.Value != 7 {
		t.Errorf("Do ok body:%s err:%e", raw, err)
	}

	// success=false surfaces as an RPCError carrying the node message
	_, err = cl.Do(context.Background(), "refused", nil)

	var rpcErr *types.RPCError
	if !errors.As(err, &rpcErr) {
		t.Fatalf("Do refused err:%v, expected *types.RPCError", err)
	}

	if rpcErr.Method != "refused" || rpcErr.Message != "no such coin" {
		t.Errorf("Do refused err:%+v", rpcErr)
	}

	// non-200 status
	_, err = cl.Do(context.Background(), "boom", nil)
	if !errors.As(err, &rpcErr) || rpcErr.Status != http.StatusInternalServerError {
		t.Errorf("Do boom err:%v", err)
	}
}

func TestCoinRecords(t *testing.T) {
	var gotParams map[string]interface{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotParams)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"coin_records": []interface{}{
				map[string]interface{}{
					"coin": map[string]interface{}{
						"parent_coin_info": (types.Bytes32{0x01}).String(),
						"puzzle_hash":      (types.Bytes32{0x02}).String(),
						"amount":           12345,
					},
					"confirmed_block_index": 99,
					"spent":                 true,
					"spent_block_index":     120,
				},
			},
		})
	}))
	defer srv.Close()

	cl := New(srv.URL)
	defer cl.Close()

	ph := types.Bytes32{0x02}

	recs, err := cl.GetCoinRecordsByPuzzleHash(context.Background(), ph, true)
	if err != nil {
		t.Fatalf("GetCoinRecordsByPuzzleHash err:%e", err)
	}

	if gotParams["puzzle_hash"] != ph.String() || gotParams["include_spent_coins"] != true {
		t.Errorf("params sent:%+v", gotParams)
	}

	if len(recs) != 1 {
		t.Fatalf("got %d records expected 1", len(recs))
	}

	rec := recs[0]
	if rec.Coin.Amount != 12345 || rec.Coin.PuzzleHash != ph ||
		rec.ConfirmedBlockIndex != 99 || !rec.Spent || rec.SpentBlockIndex != 120 {
		t.Errorf("record decoded wrong: %+v", rec)
	}

	// hint variant carries the start height
	if _, err = cl.GetCoinRecordsByHint(context.Background(), ph, false, 1880000); err != nil {
		t.Fatalf("GetCoinRecordsByHint err:%e", err)
	}

	if gotParams["hint"] != ph.String() || gotParams["start_height"] != float64(1880000) {
		t.Errorf("params sent:%+v", gotParams)
	}
}

func TestPuzzleAndSolutionAndPush(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		switch r.URL.Path {
		case "/get_puzzle_and_solution":
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"success": true,
				"coin_solution": map[string]interface{}{
					"coin": map[string]interface{}{
						"parent_coin_info": (types.Bytes32{0x0a}).String(),
						"puzzle_hash":      (types.Bytes32{0x0b}).String(),
						"amount":           1,
					},
					"puzzle_reveal": "0x80",
					"solution":      "0x80",
				},
			})
		case "/push_tx":
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"success": true, "status": "SUCCESS"})
		}
	}))
	defer srv.Close()

	cl := New(srv.URL)
	defer cl.Close()

	ps, err := cl.GetPuzzleAndSolution(context.Background(), types.Bytes32{0xcc}, 42)
	if err != nil {
		t.Fatalf("GetPuzzleAndSolution err:%e", err)
	}

	if ps.PuzzleReveal != "0x80" || ps.Coin.PuzzleHash != (types.Bytes32{0x0b}) {
		t.Errorf("puzzle and solution decoded wrong: %+v", ps)
	}

	status, err := cl.PushTX(context.Background(), types.SpendBundle{"coin_spends": []interface{}{}})
	if err != nil || status != "SUCCESS" {
		t.Errorf("PushTX status:%s err:%e", status, err)
	}
}
