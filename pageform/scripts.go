package pageform

// Scripts evaluated in the page. Each is a function definition that rod
// calls with the listed arguments. Results that carry structure are
// returned as JSON strings.

// formExistsJS(id) reports whether id names a <form>.
const formExistsJS = `(id) => {
	const f = document.getElementById(id);
	return !!f && f.tagName === 'FORM';
}`

// drainJS(ids) installs the event listener on every listed form that does
// not have one yet, then empties and returns the queue. Events dispatched
// from Go carry the __draftkeeper mark and are not queued.
//
// The queue is mirrored to sessionStorage so events survive a same-origin
// navigation, such as a native form submit. Pages without storage (opaque
// origins) keep it in memory only.
const drainJS = `(ids) => {
	const KEY = '__draftkeeperEvents';
	const persist = (q) => {
		try { sessionStorage.setItem(KEY, JSON.stringify(q)); } catch (e) {}
	};
	const restore = () => {
		try { return JSON.parse(sessionStorage.getItem(KEY) || '[]'); } catch (e) { return []; }
	};
	const dk = window.__draftkeeperEvents || (window.__draftkeeperEvents = {queue: restore(), forms: {}});
	for (const id of ids) {
		const form = document.getElementById(id);
		if (!form || dk.forms[id] === form) continue;
		dk.forms[id] = form;
		const push = (type) => (e) => {
			if (e.__draftkeeper) return;
			dk.queue.push({form: id, type: type, name: (e.target && e.target.name) || ''});
			persist(dk.queue);
		};
		form.addEventListener('input', push('input'), true);
		form.addEventListener('submit', push('submit'), true);
	}
	const out = dk.queue.splice(0);
	persist(dk.queue);
	return JSON.stringify(out);
}`

// listFieldsJS(id) returns the named controls of the form, or "null".
const listFieldsJS = `(id) => {
	const form = document.getElementById(id);
	if (!form || form.tagName !== 'FORM') return 'null';
	const out = [];
	for (const el of form.elements) {
		if (!el.name) continue;
		const tag = el.tagName.toLowerCase();
		let kind;
		if (tag === 'textarea' || tag === 'select') {
			kind = tag;
		} else if (tag === 'input') {
			kind = (el.getAttribute('type') || 'text').toLowerCase();
			if (['submit', 'button', 'reset', 'image'].includes(kind)) continue;
			if (!['checkbox', 'radio', 'file', 'hidden'].includes(kind)) kind = 'text';
		} else {
			continue;
		}
		const checkable = kind === 'checkbox' || kind === 'radio';
		out.push({
			name: el.name,
			kind: kind,
			value: kind === 'file' ? '' : el.value,
			checked: checkable && el.checked,
		});
	}
	return JSON.stringify(out);
}`

// setValueJS(id, name, value) sets the first text-like control named name.
const setValueJS = `(id, name, value) => {
	const form = document.getElementById(id);
	if (!form) return false;
	for (const el of form.elements) {
		if (el.name !== name) continue;
		const tag = el.tagName.toLowerCase();
		if (tag !== 'input' && tag !== 'textarea' && tag !== 'select') continue;
		const t = (el.type || '').toLowerCase();
		if (t === 'checkbox' || t === 'radio' || t === 'file') continue;
		el.value = value;
		return true;
	}
	return false;
}`

// setCheckedJS(id, name, value, checked) toggles checkable controls.
// Checkboxes match any value when value is empty; radios match exactly.
const setCheckedJS = `(id, name, value, checked) => {
	const form = document.getElementById(id);
	if (!form) return false;
	let found = false;
	for (const el of form.elements) {
		if (el.name !== name) continue;
		const t = (el.type || '').toLowerCase();
		if (t === 'checkbox' && (value === '' || el.value === value)) {
			el.checked = checked;
			found = true;
		} else if (t === 'radio' && el.value === value) {
			el.checked = checked;
			found = true;
		}
	}
	return found;
}`

// dispatchJS(id, name) fires a bubbling input event on the first control
// named name so page scripts can react.
const dispatchJS = `(id, name) => {
	const form = document.getElementById(id);
	if (!form) return false;
	for (const el of form.elements) {
		if (el.name !== name) continue;
		const ev = new Event('input', {bubbles: true});
		ev.__draftkeeper = true;
		el.dispatchEvent(ev);
		return true;
	}
	return false;
}`
