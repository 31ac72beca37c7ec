package browser

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/chromedp/chromedp"

	"github.com/rahul/steptable/internal/dom"
)

// refAttr marks every element handed out by a Page. Later calls find the
// element again by it, so a re-render that drops the node surfaces as an
// error instead of acting on the wrong element.
const refAttr = "data-steptable-ref"

const queryScript = `(function(root, sel) {
  const scope = root ? document.querySelector('[` + refAttr + `="' + root + '"]') : document;
  if (!scope) throw new Error('element ' + root + ' is no longer in the page');
  const refs = [];
  for (const el of scope.querySelectorAll(sel)) {
    let ref = el.getAttribute('` + refAttr + `');
    if (!ref) {
      window.__steptableRef = (window.__steptableRef || 0) + 1;
      ref = String(window.__steptableRef);
      el.setAttribute('` + refAttr + `', ref);
    }
    refs.push(ref);
  }
  return refs;
})(%s, %s)`

const elementScript = `(function(ref, arg) {
  const el = document.querySelector('[` + refAttr + `="' + ref + '"]');
  if (!el) throw new Error('element ' + ref + ' is no longer in the page');
  const setNative = (v) => {
    const proto = el instanceof HTMLTextAreaElement ? HTMLTextAreaElement.prototype
      : el instanceof HTMLInputElement ? HTMLInputElement.prototype : null;
    if (!proto) return false;
    Object.getOwnPropertyDescriptor(proto, 'value').set.call(el, v);
    return true;
  };
  const fire = (type) => el.dispatchEvent(new Event(type, { bubbles: true, cancelable: true }));
  return (%s)(el, arg, setNative, fire);
})(%s, %s)`

// Element operations, each a function of (el, arg, setNative, fire).
const (
	opText     = `(el) => el.innerText || el.textContent || ''`
	opValue    = `(el) => (el instanceof HTMLTextAreaElement || el instanceof HTMLInputElement) ? el.value : ''`
	opClick    = `(el) => { el.click(); return true; }`
	opFocus    = `(el) => { el.focus(); return true; }`
	opBlur     = `(el) => { el.blur(); return true; }`
	opSetValue = `(el, v, setNative) => setNative(v)`
	opDispatch = `(el, type, setNative, fire) => { fire(type); return true; }`
	opReplay   = `(el, v, setNative, fire) => {
    if (!setNative('')) return false;
    fire('input');
    let typed = '';
    for (const ch of v) {
      typed += ch;
      setNative(typed);
      fire('input');
    }
    return true;
  }`
)

// Page is the working tab seen as a dom.Document.
type Page struct {
	s *Session
}

var _ dom.Document = (*Page)(nil)

func (p *Page) QueryAll(ctx context.Context, selector string) ([]dom.Element, error) {
	return p.query(ctx, "", selector)
}

func (p *Page) query(ctx context.Context, root, selector string) ([]dom.Element, error) {
	var refs []string
	if err := p.s.run(ctx, chromedp.Evaluate(fmt.Sprintf(queryScript, jsString(root), jsString(selector)), &refs)); err != nil {
		return nil, fmt.Errorf("query %q: %w", selector, err)
	}
	els := make([]dom.Element, 0, len(refs))
	for _, ref := range refs {
		els = append(els, &element{p: p, ref: ref})
	}
	return els, nil
}

func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

type element struct {
	p   *Page
	ref string
}

var (
	_ dom.Element       = (*element)(nil)
	_ dom.InputReplayer = (*element)(nil)
)

func (e *element) eval(ctx context.Context, op, arg string, out any) error {
	return e.p.s.run(ctx, chromedp.Evaluate(fmt.Sprintf(elementScript, op, jsString(e.ref), jsString(arg)), out))
}

func (e *element) do(ctx context.Context, op, arg string) error {
	var ok bool
	if err := e.eval(ctx, op, arg, &ok); err != nil {
		return err
	}
	if !ok {
		return dom.ErrNotEditable
	}
	return nil
}

func (e *element) QueryAll(ctx context.Context, selector string) ([]dom.Element, error) {
	return e.p.query(ctx, e.ref, selector)
}

func (e *element) Text(ctx context.Context) (string, error) {
	var s string
	err := e.eval(ctx, opText, "", &s)
	return s, err
}

func (e *element) Value(ctx context.Context) (string, error) {
	var s string
	err := e.eval(ctx, opValue, "", &s)
	return s, err
}

func (e *element) Click(ctx context.Context) error { return e.do(ctx, opClick, "") }
func (e *element) Focus(ctx context.Context) error { return e.do(ctx, opFocus, "") }
func (e *element) Blur(ctx context.Context) error  { return e.do(ctx, opBlur, "") }

func (e *element) SetValue(ctx context.Context, value string) error {
	return e.do(ctx, opSetValue, value)
}

func (e *element) Dispatch(ctx context.Context, event string) error {
	return e.do(ctx, opDispatch, event)
}

// ReplayInput types value one character at a time inside the page.
func (e *element) ReplayInput(ctx context.Context, value string) error {
	return e.do(ctx, opReplay, value)
}
