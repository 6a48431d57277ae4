//go:build js && wasm

package main

import (
	"context"
	"encoding/json"
	"syscall/js"

	"github.com/luneo/canvas-engine/internal/document"
	"github.com/luneo/canvas-engine/internal/engine"
	"github.com/luneo/canvas-engine/internal/export"
	"github.com/luneo/canvas-engine/internal/geom"
)

var eng *engine.Engine

func main() {
	eng = engine.New()

	canvasEngine := js.Global().Get("Object").New()

	// --- Lifecycle ---
	canvasEngine.Set("init", js.FuncOf(initEngine))
	canvasEngine.Set("loadScene", js.FuncOf(loadScene))
	canvasEngine.Set("loadSampleScene", js.FuncOf(loadSampleScene))
	canvasEngine.Set("destroy", js.FuncOf(destroy))

	// --- Viewport ---
	canvasEngine.Set("resize", js.FuncOf(resize))
	canvasEngine.Set("setZoom", js.FuncOf(setZoom))
	canvasEngine.Set("wheel", js.FuncOf(wheel))
	canvasEngine.Set("pan", js.FuncOf(pan))
	canvasEngine.Set("resetView", js.FuncOf(resetView))
	canvasEngine.Set("fitToScreen", js.FuncOf(fitToScreen))
	canvasEngine.Set("getViewport", js.FuncOf(getViewport))

	// --- Objects ---
	canvasEngine.Set("addText", js.FuncOf(addText))
	canvasEngine.Set("addShape", js.FuncOf(addShape))
	canvasEngine.Set("addDrawingLine", js.FuncOf(addDrawingLine))
	canvasEngine.Set("addImage", js.FuncOf(addImage))
	canvasEngine.Set("addQRCode", js.FuncOf(addQRCode))
	canvasEngine.Set("startImage", js.FuncOf(startImage))
	canvasEngine.Set("startQRCode", js.FuncOf(startQRCode))
	canvasEngine.Set("updateQRCode", js.FuncOf(updateQRCode))
	canvasEngine.Set("updateObject", js.FuncOf(updateObject))
	canvasEngine.Set("moveObject", js.FuncOf(moveObject))
	canvasEngine.Set("removeObject", js.FuncOf(removeObject))
	canvasEngine.Set("cloneObject", js.FuncOf(cloneObject))
	canvasEngine.Set("reorder", js.FuncOf(reorder))
	canvasEngine.Set("toggleVisibility", js.FuncOf(toggleVisibility))
	canvasEngine.Set("toggleLock", js.FuncOf(toggleLock))
	canvasEngine.Set("loadFont", js.FuncOf(loadFont))
	canvasEngine.Set("isFontLoaded", js.FuncOf(isFontLoaded))

	// --- Selection and history ---
	canvasEngine.Set("select", js.FuncOf(selectObjects))
	canvasEngine.Set("deselectAll", js.FuncOf(deselectAll))
	canvasEngine.Set("group", js.FuncOf(group))
	canvasEngine.Set("ungroup", js.FuncOf(ungroup))
	canvasEngine.Set("deleteSelected", js.FuncOf(deleteSelected))
	canvasEngine.Set("undo", js.FuncOf(undo))
	canvasEngine.Set("redo", js.FuncOf(redo))
	canvasEngine.Set("handleKey", js.FuncOf(handleKey))

	// --- Queries ---
	canvasEngine.Set("render", js.FuncOf(render))
	canvasEngine.Set("hitTest", js.FuncOf(hitTest))
	canvasEngine.Set("getSelection", js.FuncOf(getSelection))
	canvasEngine.Set("getSelectionBounds", js.FuncOf(getSelectionBounds))
	canvasEngine.Set("getObject", js.FuncOf(getObject))
	canvasEngine.Set("getAllObjects", js.FuncOf(getAllObjects))
	canvasEngine.Set("getScene", js.FuncOf(getScene))
	canvasEngine.Set("getHistory", js.FuncOf(getHistory))
	canvasEngine.Set("validateDesign", js.FuncOf(validateDesign))
	canvasEngine.Set("getZoneGuides", js.FuncOf(getZoneGuides))

	// --- Export ---
	canvasEngine.Set("rasterize", js.FuncOf(rasterize))
	canvasEngine.Set("exportSVG", js.FuncOf(exportSVG))
	canvasEngine.Set("exportPrint", js.FuncOf(exportPrint))
	canvasEngine.Set("composeDocument", js.FuncOf(composeDocument))

	js.Global().Set("canvasEngine", canvasEngine)
	js.Global().Set("canvasWasmReady", js.ValueOf(true))

	// Keep Go runtime alive
	select {}
}

// --- Helpers ---

func ok(extra map[string]interface{}) interface{} {
	out := map[string]interface{}{"ok": true}
	for k, v := range extra {
		out[k] = v
	}
	return js.ValueOf(out)
}

func fail(err error) interface{} {
	return js.ValueOf(map[string]interface{}{"error": err.Error()})
}

func missing(what string) interface{} {
	return js.ValueOf(map[string]interface{}{"error": "missing " + what})
}

func toJSON(v interface{}) interface{} {
	data, err := json.Marshal(v)
	if err != nil {
		return fail(err)
	}
	return js.ValueOf(string(data))
}

// decodeArg unmarshals args[i], a JSON string, into v. An absent argument
// leaves v unchanged.
func decodeArg(args []js.Value, i int, v interface{}) error {
	if len(args) <= i || args[i].Type() != js.TypeString {
		return nil
	}
	return json.Unmarshal([]byte(args[i].String()), v)
}

func stringArgs(v js.Value) []string {
	if v.Type() != js.TypeObject {
		return nil
	}
	ids := make([]string, v.Length())
	for i := range ids {
		ids[i] = v.Index(i).String()
	}
	return ids
}

// promise runs fn off the event loop. Image, font and QR loads fetch over
// the network, which would deadlock if awaited inside a callback.
func promise(fn func() (interface{}, error)) interface{} {
	handler := js.FuncOf(func(this js.Value, args []js.Value) interface{} {
		resolve, reject := args[0], args[1]
		go func() {
			v, err := fn()
			if err != nil {
				reject.Invoke(js.Global().Get("Error").New(err.Error()))
				return
			}
			resolve.Invoke(v)
		}()
		return nil
	})
	return js.Global().Get("Promise").New(handler)
}

func bytesToJS(data []byte) js.Value {
	arr := js.Global().Get("Uint8Array").New(len(data))
	js.CopyBytesToJS(arr, data)
	return arr
}

// --- Lifecycle ---

func initEngine(this js.Value, args []js.Value) interface{} {
	if len(args) < 3 {
		return missing("scene JSON, width and height")
	}
	var scene document.Scene
	if err := json.Unmarshal([]byte(args[0].String()), &scene); err != nil {
		return fail(err)
	}
	if err := eng.Init(&scene, args[1].Float(), args[2].Float()); err != nil {
		return fail(err)
	}
	return ok(nil)
}

func loadScene(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return missing("scene JSON")
	}
	if err := eng.LoadJSON([]byte(args[0].String())); err != nil {
		return fail(err)
	}
	return ok(nil)
}

func loadSampleScene(this js.Value, args []js.Value) interface{} {
	if err := eng.LoadSampleScene(); err != nil {
		return fail(err)
	}
	return ok(nil)
}

func destroy(this js.Value, args []js.Value) interface{} {
	eng.Destroy()
	return nil
}

// --- Viewport ---

func resize(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return missing("width and height")
	}
	if err := eng.Viewport().Resize(args[0].Float(), args[1].Float()); err != nil {
		return fail(err)
	}
	return ok(nil)
}

func setZoom(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return missing("zoom level")
	}
	var anchor *geom.Point
	if len(args) >= 3 {
		anchor = &geom.Point{X: args[1].Float(), Y: args[2].Float()}
	}
	if err := eng.Viewport().SetZoom(args[0].Float(), anchor); err != nil {
		return fail(err)
	}
	return ok(nil)
}

func wheel(this js.Value, args []js.Value) interface{} {
	if len(args) < 3 {
		return missing("deltaY and pointer")
	}
	if err := eng.Viewport().Wheel(args[0].Float(), geom.Point{X: args[1].Float(), Y: args[2].Float()}); err != nil {
		return fail(err)
	}
	return ok(nil)
}

func pan(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return missing("dx and dy")
	}
	if err := eng.Viewport().Pan(args[0].Float(), args[1].Float()); err != nil {
		return fail(err)
	}
	return ok(nil)
}

func resetView(this js.Value, args []js.Value) interface{} {
	if err := eng.Viewport().Reset(); err != nil {
		return fail(err)
	}
	return ok(nil)
}

func fitToScreen(this js.Value, args []js.Value) interface{} {
	padding := 0.0
	if len(args) > 0 {
		padding = args[0].Float()
	}
	if err := eng.FitToScreen(padding); err != nil {
		return fail(err)
	}
	return ok(nil)
}

func getViewport(this js.Value, args []js.Value) interface{} {
	return toJSON(eng.Viewport().State())
}

// --- Objects ---

func addText(this js.Value, args []js.Value) interface{} {
	var cfg engine.TextConfig
	if err := decodeArg(args, 0, &cfg); err != nil {
		return fail(err)
	}
	id, err := eng.AddText(cfg)
	if err != nil {
		return fail(err)
	}
	return ok(map[string]interface{}{"id": id})
}

func addShape(this js.Value, args []js.Value) interface{} {
	var cfg engine.ShapeConfig
	if err := decodeArg(args, 0, &cfg); err != nil {
		return fail(err)
	}
	id, err := eng.AddShape(cfg)
	if err != nil {
		return fail(err)
	}
	return ok(map[string]interface{}{"id": id})
}

func addDrawingLine(this js.Value, args []js.Value) interface{} {
	var cfg engine.LineConfig
	if err := decodeArg(args, 0, &cfg); err != nil {
		return fail(err)
	}
	id, err := eng.AddDrawingLine(cfg)
	if err != nil {
		return fail(err)
	}
	return ok(map[string]interface{}{"id": id})
}

func addImage(this js.Value, args []js.Value) interface{} {
	var cfg engine.ImageConfig
	if err := decodeArg(args, 0, &cfg); err != nil {
		return fail(err)
	}
	return promise(func() (interface{}, error) {
		return eng.AddImage(context.Background(), cfg)
	})
}

func addQRCode(this js.Value, args []js.Value) interface{} {
	var cfg engine.QRConfig
	if err := decodeArg(args, 0, &cfg); err != nil {
		return fail(err)
	}
	return promise(func() (interface{}, error) {
		return eng.AddQRCode(context.Background(), cfg)
	})
}

// startImage returns {id, done} at once; removeObject(id) abandons the load
// and done rejects.
func startImage(this js.Value, args []js.Value) interface{} {
	var cfg engine.ImageConfig
	if err := decodeArg(args, 0, &cfg); err != nil {
		return fail(err)
	}
	load, err := eng.StartImage(context.Background(), cfg)
	if err != nil {
		return fail(err)
	}
	return pendingLoad(load)
}

func startQRCode(this js.Value, args []js.Value) interface{} {
	var cfg engine.QRConfig
	if err := decodeArg(args, 0, &cfg); err != nil {
		return fail(err)
	}
	load, err := eng.StartQRCode(context.Background(), cfg)
	if err != nil {
		return fail(err)
	}
	return pendingLoad(load)
}

func pendingLoad(load *engine.Load) interface{} {
	return ok(map[string]interface{}{
		"id": load.ID,
		"done": promise(func() (interface{}, error) {
			return load.Wait(context.Background())
		}),
	})
}

func updateQRCode(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return missing("id and text")
	}
	id, text := args[0].String(), args[1].String()
	return promise(func() (interface{}, error) {
		return id, eng.UpdateQRCode(context.Background(), id, text)
	})
}

func updateObject(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return missing("id and patch JSON")
	}
	var patch document.Patch
	if err := decodeArg(args, 1, &patch); err != nil {
		return fail(err)
	}
	if err := eng.UpdateObject(args[0].String(), patch); err != nil {
		return fail(err)
	}
	return ok(nil)
}

func moveObject(this js.Value, args []js.Value) interface{} {
	if len(args) < 3 {
		return missing("id, x and y")
	}
	if err := eng.MoveObject(args[0].String(), args[1].Float(), args[2].Float()); err != nil {
		return fail(err)
	}
	return ok(nil)
}

func removeObject(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return missing("id")
	}
	if err := eng.RemoveObject(args[0].String()); err != nil {
		return fail(err)
	}
	return ok(nil)
}

func cloneObject(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return missing("id")
	}
	id, err := eng.CloneObject(args[0].String())
	if err != nil {
		return fail(err)
	}
	return ok(map[string]interface{}{"id": id})
}

// reorder takes an id and one of "top", "bottom", "up", "down" or a numeric
// index.
func reorder(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return missing("id and position")
	}
	id := args[0].String()
	var err error
	if args[1].Type() == js.TypeNumber {
		err = eng.MoveTo(id, args[1].Int())
	} else {
		switch args[1].String() {
		case "top":
			err = eng.MoveToTop(id)
		case "bottom":
			err = eng.MoveToBottom(id)
		case "up":
			err = eng.MoveUp(id)
		case "down":
			err = eng.MoveDown(id)
		default:
			return js.ValueOf(map[string]interface{}{"error": "unknown position " + args[1].String()})
		}
	}
	if err != nil {
		return fail(err)
	}
	return ok(nil)
}

func toggleVisibility(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return missing("id")
	}
	visible, err := eng.ToggleVisibility(args[0].String())
	if err != nil {
		return fail(err)
	}
	return ok(map[string]interface{}{"visible": visible})
}

func toggleLock(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return missing("id")
	}
	locked, err := eng.ToggleLock(args[0].String())
	if err != nil {
		return fail(err)
	}
	return ok(map[string]interface{}{"locked": locked})
}

func loadFont(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return missing("family and url")
	}
	family, url := args[0].String(), args[1].String()
	return promise(func() (interface{}, error) {
		return family, eng.LoadFont(context.Background(), family, url)
	})
}

func isFontLoaded(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return js.ValueOf(false)
	}
	return js.ValueOf(eng.IsFontLoaded(args[0].String()))
}

// --- Selection and history ---

func selectObjects(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		eng.DeselectAll()
		return ok(nil)
	}
	var err error
	if args[0].Type() == js.TypeString {
		if len(args) > 1 && args[1].Truthy() {
			err = eng.AddToSelection(args[0].String())
		} else {
			err = eng.Select(args[0].String())
		}
	} else {
		err = eng.SelectMultiple(stringArgs(args[0]))
	}
	if err != nil {
		return fail(err)
	}
	return ok(nil)
}

func deselectAll(this js.Value, args []js.Value) interface{} {
	eng.DeselectAll()
	return nil
}

func group(this js.Value, args []js.Value) interface{} {
	var ids []string
	if len(args) > 0 {
		ids = stringArgs(args[0])
	}
	id, err := eng.GroupObjects(ids)
	if err != nil {
		return fail(err)
	}
	return ok(map[string]interface{}{"id": id})
}

func ungroup(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return missing("group id")
	}
	ids, err := eng.UngroupObjects(args[0].String())
	if err != nil {
		return fail(err)
	}
	out := make([]interface{}, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return ok(map[string]interface{}{"ids": out})
}

func deleteSelected(this js.Value, args []js.Value) interface{} {
	if err := eng.DeleteSelected(); err != nil {
		return fail(err)
	}
	return ok(nil)
}

func undo(this js.Value, args []js.Value) interface{} {
	done, err := eng.Undo()
	if err != nil {
		return fail(err)
	}
	return ok(map[string]interface{}{"changed": done})
}

func redo(this js.Value, args []js.Value) interface{} {
	done, err := eng.Redo()
	if err != nil {
		return fail(err)
	}
	return ok(map[string]interface{}{"changed": done})
}

func handleKey(this js.Value, args []js.Value) interface{} {
	var k engine.KeyEvent
	if err := decodeArg(args, 0, &k); err != nil {
		return fail(err)
	}
	action, err := eng.HandleKey(k)
	if err != nil {
		return fail(err)
	}
	return ok(map[string]interface{}{"action": string(action)})
}

// --- Queries ---

func render(this js.Value, args []js.Value) interface{} {
	return js.ValueOf(eng.Render())
}

func hitTest(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return js.ValueOf("")
	}
	id, err := eng.HitTestScreen(geom.Point{X: args[0].Float(), Y: args[1].Float()})
	if err != nil {
		return js.ValueOf("")
	}
	return js.ValueOf(id)
}

func getSelection(this js.Value, args []js.Value) interface{} {
	return toJSON(eng.Selection())
}

func getSelectionBounds(this js.Value, args []js.Value) interface{} {
	return toJSON(eng.SelectionBounds())
}

func getObject(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return js.Null()
	}
	obj, found := eng.GetObject(args[0].String())
	if !found {
		return js.Null()
	}
	return toJSON(obj)
}

func getAllObjects(this js.Value, args []js.Value) interface{} {
	return toJSON(eng.GetAllObjects())
}

func getScene(this js.Value, args []js.Value) interface{} {
	data, err := eng.SceneJSON()
	if err != nil {
		return fail(err)
	}
	return js.ValueOf(string(data))
}

func getHistory(this js.Value, args []js.Value) interface{} {
	return toJSON(eng.History())
}

// getZoneGuides(margin?, bleed?) returns the safe and bleed overlays of
// every zone, in design units.
func getZoneGuides(this js.Value, args []js.Value) interface{} {
	var margin, bleed float64
	if len(args) > 0 {
		margin = args[0].Float()
	}
	if len(args) > 1 {
		bleed = args[1].Float()
	}
	guides, err := eng.ZoneGuides(margin, bleed)
	if err != nil {
		return fail(err)
	}
	return toJSON(guides)
}

func validateDesign(this js.Value, args []js.Value) interface{} {
	report, err := eng.ValidateDesign()
	if err != nil {
		return fail(err)
	}
	return toJSON(report)
}

// --- Export ---

func rasterize(this js.Value, args []js.Value) interface{} {
	var opts export.Options
	if err := decodeArg(args, 0, &opts); err != nil {
		return fail(err)
	}
	return promise(func() (interface{}, error) {
		data, err := eng.Rasterize(context.Background(), opts)
		if err != nil {
			return nil, err
		}
		return bytesToJS(data), nil
	})
}

func exportSVG(this js.Value, args []js.Value) interface{} {
	var opts export.Options
	if err := decodeArg(args, 0, &opts); err != nil {
		return fail(err)
	}
	return promise(func() (interface{}, error) {
		data, err := eng.ExportSVG(context.Background(), opts)
		if err != nil {
			return nil, err
		}
		return string(data), nil
	})
}

func exportPrint(this js.Value, args []js.Value) interface{} {
	var opts export.Options
	if err := decodeArg(args, 0, &opts); err != nil {
		return fail(err)
	}
	return promise(func() (interface{}, error) {
		data, err := eng.ExportPrint(context.Background(), opts)
		if err != nil {
			return nil, err
		}
		return bytesToJS(data), nil
	})
}

// composeDocument takes a JSON array of pages and JSON options. Pages
// without a scene print the live scene.
func composeDocument(this js.Value, args []js.Value) interface{} {
	var (
		pages []export.Page
		opts  export.Options
	)
	if err := decodeArg(args, 0, &pages); err != nil {
		return fail(err)
	}
	if err := decodeArg(args, 1, &opts); err != nil {
		return fail(err)
	}
	return promise(func() (interface{}, error) {
		data, err := eng.ComposeDocument(context.Background(), pages, opts)
		if err != nil {
			return nil, err
		}
		return bytesToJS(data), nil
	})
}
