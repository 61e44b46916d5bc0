package webmonitor

const indexHTML = `<!DOCTYPE html>
<html>
<head>
    <title>People Count Monitor</title>
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <style>
        body { margin: 0; font-family: system-ui, sans-serif; background: #111; color: #eee; }
        .header { display: flex; justify-content: space-between; align-items: center; padding: 12px 20px; background: #1c1c1c; }
        .title { font-size: 20px; font-weight: 600; }
        .badge { padding: 4px 10px; border-radius: 12px; font-size: 13px; background: #555; }
        .badge-ok { background: #1f8b3b; }
        .badge-alert { background: #b3261e; }
        .grid { display: grid; grid-template-columns: 2fr 1fr; gap: 16px; padding: 16px 20px; }
        .panel { background: #1c1c1c; border-radius: 8px; padding: 14px; }
        .panel h2 { margin: 0 0 10px; font-size: 16px; }
        #stream { width: 100%; height: auto; background: #000; display: block; }
        table { width: 100%; border-collapse: collapse; font-size: 13px; }
        td { padding: 4px 2px; border-bottom: 1px solid #2a2a2a; }
        td.k { color: #999; }
        .below { color: #ff6b6b; }
        .ok { color: #6bdc87; }
        @media (max-width: 900px) { .grid { grid-template-columns: 1fr; } }
    </style>
</head>
<body>
    <div class="header">
        <div class="title">People Count Monitor</div>
        <span class="badge" id="status-badge">Waiting for data...</span>
    </div>

    <div class="grid">
        <div class="panel" style="grid-row: span 3;">
            <h2>Live Feed</h2>
            <img id="stream" src="/stream" alt="Annotated camera stream">
        </div>

        <div class="panel">
            <h2>Status</h2>
            <table>
                <tr><td class="k">People</td><td id="people">-</td></tr>
                <tr><td class="k">Minimum</td><td id="min-people">-</td></tr>
                <tr><td class="k">Frames</td><td id="frames">-</td></tr>
                <tr><td class="k">FPS</td><td id="fps">-</td></tr>
                <tr><td class="k">Alerts</td><td id="alerts">-</td></tr>
                <tr><td class="k">Last alert</td><td id="last-alert">-</td></tr>
                <tr><td class="k">Recording</td><td id="recording">-</td></tr>
            </table>
        </div>

        <div class="panel">
            <h2>Count History</h2>
            <table id="history"></table>
        </div>

        <div class="panel">
            <h2>Recent Alerts</h2>
            <table id="events"></table>
        </div>
    </div>

    <script>
        const fmtTime = (ts) => ts ? new Date(ts * 1000).toLocaleTimeString() : '-';

        function renderStatus(s) {
            const m = s.monitor;
            const badge = document.getElementById('status-badge');
            if (!m.running) {
                badge.textContent = 'Stopped';
                badge.className = 'badge';
            } else if (m.below_minimum) {
                badge.textContent = 'Below minimum';
                badge.className = 'badge badge-alert';
            } else {
                badge.textContent = 'OK';
                badge.className = 'badge badge-ok';
            }
            const people = document.getElementById('people');
            people.textContent = m.people_count;
            people.className = m.below_minimum ? 'below' : 'ok';
            document.getElementById('min-people').textContent = m.min_people;
            document.getElementById('frames').textContent = m.frames_processed;
            document.getElementById('fps').textContent = m.current_fps.toFixed(1);
            document.getElementById('alerts').textContent = m.alerts_emitted;
            document.getElementById('last-alert').textContent = fmtTime(m.last_alert_time);
            document.getElementById('recording').textContent =
                m.recording_active ? m.current_recording_path : 'idle';

            document.getElementById('history').innerHTML = (s.count_history || []).map(h =>
                '<tr><td class="k">' + fmtTime(h.timestamp) + '</td>' +
                '<td class="' + (h.below_minimum ? 'below' : 'ok') + '">' + h.people_count + '</td></tr>'
            ).join('');
        }

        function loadEvents() {
            fetch('/api/events').then(r => r.ok ? r.json() : null).then(e => {
                if (!e) return;
                document.getElementById('events').innerHTML = e.alerts.map(a =>
                    '<tr><td class="k">' + new Date(a.occurred_at).toLocaleTimeString() + '</td>' +
                    '<td class="below">' + a.people_count + ' / ' + a.min_people + '</td></tr>'
                ).join('');
            }).catch(() => {});
        }

        const source = new EventSource('/api/status/stream');
        source.onmessage = (ev) => renderStatus(JSON.parse(ev.data));
        source.onerror = () => {
            const badge = document.getElementById('status-badge');
            badge.textContent = 'Disconnected';
            badge.className = 'badge';
        };

        loadEvents();
        setInterval(loadEvents, 10000);
    </script>
</body>
</html>
`
